package pipeline

import (
	"math"
	"sort"
	"strings"
	"time"

	"go-data-pipeline/internal/model"
	"go-data-pipeline/pkg/utils"
)

// calculateField derives t.Field from other fields of the record using a
// named formula. The result is rounded to "precision" decimals (default 2)
// and optionally clamped to [min, max].
func calculateField(rec model.Record, t model.Transformation) error {
	p := params(t.Parameters)
	formula := strings.ToLower(p.str("formula", ""))
	fields := p.list("fields")

	var (
		result float64
		err    error
	)
	switch formula {
	case "sum":
		result, err = foldNumbers(rec, t.Field, fields, 1, func(acc, v float64) float64 { return acc + v })
	case "difference":
		result, err = foldNumbers(rec, t.Field, fields, 2, func(acc, v float64) float64 { return acc - v })
	case "product":
		result, err = foldNumbers(rec, t.Field, fields, 1, func(acc, v float64) float64 { return acc * v })
	case "ratio", "percentage":
		result, err = ratio(rec, t.Field, fields)
		if err == nil && formula == "percentage" {
			result *= 100
		}
	case "days_between":
		result, err = daysBetween(rec, t.Field, fields)
	case "weighted_score":
		result, err = weightedScore(rec, t.Field, p)
	case "":
		return model.NewFieldError(t.Field, "calculate requires a 'formula' parameter")
	default:
		return model.NewFieldError(t.Field, "unknown formula %q", formula)
	}
	if err != nil {
		return err
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return model.NewFieldError(t.Field, "%s result is not a finite number", formula)
	}

	precision := 2
	if n, ok := p.integer("precision"); ok {
		precision = n
	}
	result = utils.Round(result, precision)
	if min, ok := p.number("min"); ok && result < min {
		result = min
	}
	if max, ok := p.number("max"); ok && result > max {
		result = max
	}
	rec[t.Field] = result
	return nil
}

func numberAt(rec model.Record, target, field string) (float64, error) {
	v, ok := rec[field]
	if !ok || isMissing(v) {
		return 0, model.NewFieldError(target, "operand '%s' is missing", field)
	}
	f, ok := utils.Numeric(v)
	if !ok {
		return 0, model.NewFieldError(target, "operand '%s' is not numeric", field)
	}
	return f, nil
}

func foldNumbers(rec model.Record, target string, fields []string, minFields int, fn func(acc, v float64) float64) (float64, error) {
	if len(fields) < minFields {
		return 0, model.NewFieldError(target, "formula needs at least %d fields, got %d", minFields, len(fields))
	}
	var acc float64
	for i, f := range fields {
		v, err := numberAt(rec, target, f)
		if err != nil {
			return 0, err
		}
		if i == 0 {
			acc = v
			continue
		}
		acc = fn(acc, v)
	}
	return acc, nil
}

func ratio(rec model.Record, target string, fields []string) (float64, error) {
	if len(fields) != 2 {
		return 0, model.NewFieldError(target, "ratio needs exactly 2 fields, got %d", len(fields))
	}
	num, err := numberAt(rec, target, fields[0])
	if err != nil {
		return 0, err
	}
	den, err := numberAt(rec, target, fields[1])
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, model.NewFieldError(target, "division by zero: '%s' is 0", fields[1])
	}
	return num / den, nil
}

// daysBetween counts whole days from fields[0] to fields[1], or to now when
// only one field is given.
func daysBetween(rec model.Record, target string, fields []string) (float64, error) {
	if len(fields) < 1 || len(fields) > 2 {
		return 0, model.NewFieldError(target, "days_between needs 1 or 2 fields, got %d", len(fields))
	}
	from, err := dateAt(rec, target, fields[0])
	if err != nil {
		return 0, err
	}
	to := time.Now()
	if len(fields) == 2 {
		if to, err = dateAt(rec, target, fields[1]); err != nil {
			return 0, err
		}
	}
	return math.Floor(to.Sub(from).Hours() / 24), nil
}

func dateAt(rec model.Record, target, field string) (time.Time, error) {
	v, ok := rec[field]
	if !ok || isMissing(v) {
		return time.Time{}, model.NewFieldError(target, "operand '%s' is missing", field)
	}
	d, err := parseDate(v)
	if err != nil {
		return time.Time{}, model.NewFieldError(target, "operand '%s': %v", field, err)
	}
	return d, nil
}

// weightedScore sums field*weight over the "weights" object.
func weightedScore(rec model.Record, target string, p params) (float64, error) {
	weights, ok := asMap(p["weights"])
	if !ok || len(weights) == 0 {
		return 0, model.NewFieldError(target, "weighted_score requires a 'weights' object parameter")
	}
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	var score float64
	for _, name := range names {
		w, ok := utils.Numeric(weights[name])
		if !ok {
			return 0, model.NewFieldError(target, "weight for '%s' is not numeric", name)
		}
		v, err := numberAt(rec, target, name)
		if err != nil {
			return 0, err
		}
		score += v * w
	}
	return score, nil
}
