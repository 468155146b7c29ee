package pipeline

import (
	"strconv"
	"strings"

	"go-data-pipeline/internal/model"
	"go-data-pipeline/pkg/utils"
)

// formatField renders a value as display text: currency, percentage or date.
func formatField(rec model.Record, t model.Transformation) error {
	value, ok := rec[t.Field]
	if !ok || value == nil {
		return nil
	}
	p := params(t.Parameters)

	switch style := p.str("type", "currency"); style {
	case "currency":
		f, ok := utils.Numeric(value)
		if !ok {
			return model.NewFieldError(t.Field, "cannot format %q as currency", utils.Stringify(value))
		}
		decimals := 2
		if n, ok := p.integer("decimals"); ok {
			decimals = n
		}
		rec[t.Field] = formatCurrency(f, p.str("symbol", "$"), decimals)
	case "percentage":
		f, ok := utils.Numeric(value)
		if !ok {
			return model.NewFieldError(t.Field, "cannot format %q as percentage", utils.Stringify(value))
		}
		if p.boolean("multiply", false) {
			f *= 100
		}
		decimals := 1
		if n, ok := p.integer("decimals"); ok {
			decimals = n
		}
		rec[t.Field] = strconv.FormatFloat(utils.Round(f, decimals), 'f', decimals, 64) + "%"
	case "date":
		d, err := parseDate(value)
		if err != nil {
			return model.NewFieldError(t.Field, "%v", err)
		}
		rec[t.Field] = d.Format(p.str("layout", "2006-01-02"))
	default:
		return model.NewFieldError(t.Field, "unknown format type %q", style)
	}
	return nil
}

// formatCurrency renders f with a symbol, thousands separators and a fixed
// number of decimals, e.g. -$1,234.50.
func formatCurrency(f float64, symbol string, decimals int) string {
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	text := strconv.FormatFloat(utils.Round(f, decimals), 'f', decimals, 64)
	whole, frac, _ := strings.Cut(text, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + symbol + b.String()
}
