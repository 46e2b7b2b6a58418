// Package validation holds the pure field and form rules for each checkout form
// domain. Every function here is free of side effects and may be called any
// number of times for the same input.
package validation

import (
	"shipflow/internal/fieldpath"
)

// FieldResult is the outcome of validating a single field. Maps are keyed by
// dot path and never nil.
type FieldResult struct {
	Errors          map[string]string `json:"errors"`
	Warnings        map[string]string `json:"warnings"`
	FieldValidation map[string]bool   `json:"fieldValidation"`
}

// Result is the outcome of validating a whole record. IsValid is true exactly
// when Errors is empty.
type Result struct {
	Errors          map[string]string `json:"errors"`
	Warnings        map[string]string `json:"warnings"`
	IsValid         bool              `json:"isValid"`
	FieldValidation map[string]bool   `json:"fieldValidation"`
}

// Completion reports how many required fields currently hold a value.
type Completion struct {
	CompletedFields        int  `json:"completedFields"`
	TotalFields            int  `json:"totalFields"`
	Percentage             int  `json:"percentage"`
	RequiredFieldsComplete bool `json:"requiredFieldsComplete"`
}

// Validator is the contract the form session orchestrates. Implementations
// must be pure.
type Validator interface {
	ValidateField(path fieldpath.Path, value any, record fieldpath.Record) FieldResult
	ValidateAll(record fieldpath.Record) Result
	Progress(record fieldpath.Record) Completion
}

// Check inspects a field value and returns an error message, a warning
// message, or neither.
type Check func(value any, record fieldpath.Record) (errMsg, warnMsg string)

// Rule validates one field.
type Rule struct {
	Path     string
	Label    string
	Required bool
	// When limits the rule to records it applies to. Nil means always.
	When   func(record fieldpath.Record) bool
	Checks []Check

	path fieldpath.Path
}

// CrossRule inspects the whole record and may flag Field.
type CrossRule struct {
	Field string
	Check func(record fieldpath.Record) (errMsg, warnMsg string)
}

// RuleSet is a Validator assembled from field and cross-field rules.
type RuleSet struct {
	tag   string
	rules []Rule
	cross []CrossRule
}

// NewRuleSet parses every rule path up front. It panics on a malformed path
// since rule sets are package-level literals.
func NewRuleSet(tag string, rules []Rule, cross []CrossRule) *RuleSet {
	parsed := make([]Rule, len(rules))
	for i, r := range rules {
		r.path = fieldpath.MustParse(r.Path)
		if r.Label == "" {
			r.Label = r.Path
		}
		parsed[i] = r
	}
	return &RuleSet{tag: tag, rules: parsed, cross: cross}
}

// Tag returns the form domain tag.
func (s *RuleSet) Tag() string { return s.tag }

// Paths lists the paths covered by field rules in declaration order.
func (s *RuleSet) Paths() []string {
	out := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r.Path)
	}
	return out
}

// ValidateField runs the rules registered for path against value, reading any
// context it needs from record with value applied.
func (s *RuleSet) ValidateField(path fieldpath.Path, value any, record fieldpath.Record) FieldResult {
	res := FieldResult{
		Errors:          map[string]string{},
		Warnings:        map[string]string{},
		FieldValidation: map[string]bool{},
	}
	if path.IsZero() {
		return res
	}
	key := path.String()
	withValue := fieldpath.Set(record, path, value)
	for _, r := range s.rules {
		if r.Path != key {
			continue
		}
		s.apply(r, value, withValue, res.Errors, res.Warnings)
	}
	for _, c := range s.cross {
		if c.Field != key {
			continue
		}
		recordMessage(c.Field, res.Errors, res.Warnings)(c.Check(withValue))
	}
	res.FieldValidation[key] = res.Errors[key] == ""
	return res
}

// ValidateAll runs every rule against record.
func (s *RuleSet) ValidateAll(record fieldpath.Record) Result {
	res := Result{
		Errors:          map[string]string{},
		Warnings:        map[string]string{},
		FieldValidation: map[string]bool{},
	}
	for _, r := range s.rules {
		value, _ := fieldpath.Get(record, r.path)
		s.apply(r, value, record, res.Errors, res.Warnings)
	}
	for _, c := range s.cross {
		recordMessage(c.Field, res.Errors, res.Warnings)(c.Check(record))
	}
	for _, r := range s.rules {
		res.FieldValidation[r.Path] = res.Errors[r.Path] == ""
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

// Progress counts the required rules that apply to record and how many of
// them hold a value.
func (s *RuleSet) Progress(record fieldpath.Record) Completion {
	var c Completion
	for _, r := range s.rules {
		if !r.Required || (r.When != nil && !r.When(record)) {
			continue
		}
		c.TotalFields++
		if v, ok := fieldpath.Get(record, r.path); ok && filled(v) {
			c.CompletedFields++
		}
	}
	if c.TotalFields > 0 {
		c.Percentage = c.CompletedFields * 100 / c.TotalFields
	}
	c.RequiredFieldsComplete = c.CompletedFields == c.TotalFields
	return c
}

func (s *RuleSet) apply(r Rule, value any, record fieldpath.Record, errs, warns map[string]string) {
	if r.When != nil && !r.When(record) {
		return
	}
	if !filled(value) {
		if r.Required {
			errs[r.Path] = r.Label + " is required"
		}
		return
	}
	set := recordMessage(r.Path, errs, warns)
	for _, check := range r.Checks {
		set(check(value, record))
		if errs[r.Path] != "" {
			return
		}
	}
}

// recordMessage keeps the first error and first warning per field.
func recordMessage(field string, errs, warns map[string]string) func(errMsg, warnMsg string) {
	return func(errMsg, warnMsg string) {
		if errMsg != "" && errs[field] == "" {
			errs[field] = errMsg
		}
		if warnMsg != "" && warns[field] == "" {
			warns[field] = warnMsg
		}
	}
}
