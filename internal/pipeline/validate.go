package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"go-data-pipeline/internal/model"
	"go-data-pipeline/pkg/utils"
)

// dateLayouts are tried in order when a string is coerced to a date.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// mapRecord projects a raw record onto the mapping. Destination fields are
// visited in sorted order so error text is stable.
func mapRecord(raw model.Record, mapping map[string]model.FieldMapping) (model.Record, []error) {
	out := make(model.Record, len(mapping))
	var errs []error

	for _, dest := range sortedKeys(mapping) {
		fm := mapping[dest]
		value, present := sourceValue(raw, fm.SourceField)
		if !present {
			if fm.Required {
				errs = append(errs, model.NewFieldError(dest, "required source field '%s' is missing", fm.SourceField))
				continue
			}
			if fm.DefaultValue == nil {
				out[dest] = nil
				continue
			}
			value = fm.DefaultValue
		}

		coerced, err := coerce(value, fm.DataType)
		if err != nil {
			errs = append(errs, model.NewFieldError(dest, "%v", err))
			continue
		}
		if fm.Transformation != "" {
			coerced = applyFieldTransform(coerced, fm.Transformation)
		}
		out[dest] = coerced
	}
	return out, errs
}

// sourceValue looks a field up by exact name, then case-insensitively, then as
// a dotted path into nested objects. Nil and blank strings count as missing.
func sourceValue(raw model.Record, field string) (interface{}, bool) {
	v, ok := raw[field]
	if !ok {
		for _, k := range sortedKeys(raw) {
			if strings.EqualFold(strings.TrimSpace(k), field) {
				v, ok = raw[k], true
				break
			}
		}
	}
	if !ok && strings.Contains(field, ".") {
		v, ok = nestedValue(raw, strings.Split(field, "."))
	}
	if !ok || isMissing(v) {
		return nil, false
	}
	return v, true
}

func nestedValue(node interface{}, path []string) (interface{}, bool) {
	for _, part := range path {
		m, ok := asMap(node)
		if !ok {
			return nil, false
		}
		if node, ok = m[part]; !ok {
			return nil, false
		}
	}
	return node, true
}

func isMissing(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// coerce converts v to the declared data type.
func coerce(v interface{}, t model.DataType) (interface{}, error) {
	switch t {
	case model.TypeNumber:
		if _, isBool := v.(bool); isBool {
			return nil, fmt.Errorf("cannot convert %v to number", v)
		}
		f, ok := utils.Numeric(v)
		if !ok {
			return nil, fmt.Errorf("cannot convert %q to number", utils.Stringify(v))
		}
		return f, nil
	case model.TypeDate:
		return parseDate(v)
	case model.TypeBoolean:
		return parseBool(v), nil
	case model.TypeString, "":
		return utils.Stringify(v), nil
	default:
		return nil, fmt.Errorf("unsupported data type %q", t)
	}
}

// parseDate accepts time values, strings in any known layout and spreadsheet
// serial numbers.
func parseDate(v interface{}) (time.Time, error) {
	t, err := toDate(v)
	if err != nil {
		return time.Time{}, err
	}
	if y := t.Year(); y < 1 || y > 9999 {
		return time.Time{}, fmt.Errorf("date %v is outside years 1 to 9999", v)
	}
	return t, nil
}

// maxExcelSerial is 9999-12-31, the last day a spreadsheet serial can encode.
const maxExcelSerial = 2958465

func toDate(v interface{}) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as date", d)
	}
	if serial, ok := utils.Numeric(v); ok {
		if serial < 0 || serial >= maxExcelSerial+1 {
			return time.Time{}, fmt.Errorf("serial %v is outside the spreadsheet date range", v)
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot convert serial %v to date: %w", v, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse %v as date", v)
}

func parseBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true
		}
		return false
	}
	if f, ok := utils.Numeric(v); ok {
		return f != 0
	}
	return v != nil
}

func applyFieldTransform(v interface{}, t model.FieldTransform) interface{} {
	switch t {
	case model.FieldTrim:
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	case model.FieldUppercase:
		if s, ok := v.(string); ok {
			return strings.ToUpper(s)
		}
	case model.FieldLowercase:
		if s, ok := v.(string); ok {
			return strings.ToLower(s)
		}
	case model.FieldCurrency:
		if f, ok := utils.Numeric(v); ok {
			if _, isString := v.(string); isString {
				return strconv.FormatFloat(utils.Round(f, 2), 'f', 2, 64)
			}
			return utils.Round(f, 2)
		}
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
