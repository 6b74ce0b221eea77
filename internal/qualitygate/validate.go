package qualitygate

import (
	"fmt"
	"math"
	"strings"
)

// FieldError points at the offending condition field.
type FieldError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// ValidationError lists every problem found in a gate definition.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Issue)
	}
	return ErrInvalidGate.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidGate }

// NormalizeConditions trims and upper-cases condition fields, defaults the
// scope to ALL and rejects unknown operators and scopes.
func NormalizeConditions(conds []Condition) ([]Condition, error) {
	out := make([]Condition, 0, len(conds))
	var fields []FieldError
	for idx, raw := range conds {
		c := raw.normalized()
		prefix := fmt.Sprintf("conditions[%d]", idx)
		if c.Metric == "" {
			fields = append(fields, FieldError{Field: prefix + ".metric", Issue: "required"})
		}
		if !c.Operator.Valid() {
			fields = append(fields, FieldError{Field: prefix + ".operator", Issue: fmt.Sprintf("unknown operator %q", raw.Operator)})
		}
		if !c.Scope.Valid() {
			fields = append(fields, FieldError{Field: prefix + ".scope", Issue: fmt.Sprintf("unknown scope %q", raw.Scope)})
		}
		if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
			fields = append(fields, FieldError{Field: prefix + ".threshold", Issue: "must be finite"})
		}
		out = append(out, c)
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return out, nil
}
