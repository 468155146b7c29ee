package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"go-data-pipeline/internal/model"
	"go-data-pipeline/pkg/utils"
)

// ------------------- Transformation -------------------

type recordOutcome struct {
	record model.Record
	errs   []error
}

// TransformRecords maps each raw record through the definition's field mapping
// and then its transformation list. Workers fill indexed slots so output order
// always matches input order.
func TransformRecords(def *model.Definition, raw []model.Record, workerCount int) model.TransformOutput {
	if workerCount <= 0 {
		workerCount = 1
	}
	outcomes := make([]recordOutcome, len(raw))

	indexes := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			for idx := range indexes {
				rec, errs := transformRecord(raw[idx], def)
				outcomes[idx] = recordOutcome{record: rec, errs: errs}
			}
		}()
	}
	for i := range raw {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	out := model.TransformOutput{
		Successful: make([]model.Record, 0, len(raw)),
		Failed:     []model.FailedRecord{},
		Errors:     []string{},
	}
	for i, o := range outcomes {
		if len(o.errs) == 0 {
			out.Successful = append(out.Successful, o.record)
			continue
		}
		msgs := make([]string, len(o.errs))
		for j, err := range o.errs {
			msgs[j] = err.Error()
		}
		msg := fmt.Sprintf("record %d: %s", i+1, strings.Join(msgs, "; "))
		out.Failed = append(out.Failed, model.FailedRecord{Index: i, Record: raw[i], Error: msg})
		out.Errors = append(out.Errors, msg)
	}
	return out
}

func transformRecord(raw model.Record, def *model.Definition) (model.Record, []error) {
	rec, errs := mapRecord(raw, def.Source.Mapping)
	if len(errs) > 0 {
		return nil, errs
	}
	for _, t := range def.Transformations {
		if err := applyTransformation(rec, t); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return rec, nil
}

type operationFunc func(rec model.Record, t model.Transformation) error

var operations = map[model.Operation]operationFunc{
	model.OpClean:     cleanField,
	model.OpValidate:  validateField,
	model.OpCalculate: calculateField,
	model.OpFormat:    formatField,
	model.OpLookup:    lookupField,
}

func applyTransformation(rec model.Record, t model.Transformation) error {
	op, ok := operations[t.Operation]
	if !ok {
		return model.NewFieldError(t.Field, "unknown operation %q", t.Operation)
	}
	return op(rec, t)
}

// cleanField strips special characters and collapses whitespace in string values.
func cleanField(rec model.Record, t model.Transformation) error {
	s, ok := rec[t.Field].(string)
	if !ok {
		return nil
	}
	p := params(t.Parameters)
	if p.boolean("removeSpecialChars", false) {
		keep := p.str("keep", "")
		s = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || strings.ContainsRune(keep, r) {
				return r
			}
			return -1
		}, s)
	}
	if p.boolean("normalizeWhitespace", true) {
		s = strings.Join(strings.Fields(s), " ")
	}
	rec[t.Field] = s
	return nil
}

// validateField enforces length, pattern and range rules on one field.
func validateField(rec model.Record, t model.Transformation) error {
	p := params(t.Parameters)
	value := rec[t.Field]
	if isMissing(value) {
		if p.boolean("required", false) {
			return model.NewFieldError(t.Field, "value is required")
		}
		return nil
	}

	s := utils.Stringify(value)
	length := utf8.RuneCountInString(s)
	if n, ok := p.integer("minLength"); ok && length < n {
		return model.NewFieldError(t.Field, "length %d is below minimum %d", length, n)
	}
	if n, ok := p.integer("maxLength"); ok && length > n {
		return model.NewFieldError(t.Field, "length %d exceeds maximum %d", length, n)
	}
	if pattern := p.str("pattern", ""); pattern != "" {
		re, err := compilePattern(pattern)
		if err != nil {
			return model.NewFieldError(t.Field, "invalid pattern %q: %v", pattern, err)
		}
		if !re.MatchString(s) {
			return model.NewFieldError(t.Field, "value %q does not match pattern %q", s, pattern)
		}
	}

	_, hasMin := p.number("min")
	_, hasMax := p.number("max")
	if hasMin || hasMax {
		f, ok := utils.Numeric(value)
		if !ok {
			return model.NewFieldError(t.Field, "value %q is not numeric", s)
		}
		if min, ok := p.number("min"); ok && f < min {
			return model.NewFieldError(t.Field, "value %v is below minimum %v", f, min)
		}
		if max, ok := p.number("max"); ok && f > max {
			return model.NewFieldError(t.Field, "value %v exceeds maximum %v", f, max)
		}
	}
	return nil
}

var patternCache sync.Map

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

// lookupField replaces a value using a static table. Unmatched values pass
// through unless a default is given.
func lookupField(rec model.Record, t model.Transformation) error {
	value, ok := rec[t.Field]
	if !ok || value == nil {
		return nil
	}
	p := params(t.Parameters)
	table, ok := asMap(p["table"])
	if !ok {
		return model.NewFieldError(t.Field, "lookup requires a 'table' object parameter")
	}

	key := utils.Stringify(value)
	if mapped, found := table[key]; found {
		rec[t.Field] = mapped
		return nil
	}
	if p.boolean("caseInsensitive", false) {
		for _, k := range sortedKeys(table) {
			if strings.EqualFold(k, key) {
				rec[t.Field] = table[k]
				return nil
			}
		}
	}
	if def, found := p["default"]; found {
		rec[t.Field] = def
	}
	return nil
}

// ------------------- Parameters -------------------

// params gives typed access to the loosely typed parameter bag that arrives
// from JSON or YAML definitions.
type params map[string]interface{}

func (p params) boolean(key string, def bool) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	return parseBool(v)
}

func (p params) str(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	return utils.Stringify(v)
}

func (p params) number(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	return utils.Numeric(v)
}

func (p params) integer(key string) (int, bool) {
	f, ok := p.number(key)
	return int(f), ok
}

func (p params) list(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, utils.Stringify(item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return nil
}
