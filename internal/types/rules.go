// internal/types/rules.go
package types

/*
 * Canonical rule and condition types.
 *
 * Rules are evaluated elsewhere, first match wins over the ordered list.
 * Conditions inside a rule are an implicit AND. Operands are opaque strings
 * here; segment keys and datetimes are interpreted by the evaluator.
 *
 * Key types:
 *   - Rule: conditions plus the serve strategy applied on match
 *   - Condition: type, subject, predicate, and ordered operand list
 *
 * Segment conditions carry no subject on the wire; the editor shows a
 * localized placeholder instead. Datetime conditions carry exactly one
 * operand: an RFC 3339 timestamp immediately followed by its offset.
 */

// Condition is one boolean test inside a rule.
type Condition struct {
	Type      ConditionType `json:"type" jsonschema:"enum=string,enum=number,enum=semver,enum=datetime,enum=segment"`
	Subject   string        `json:"subject,omitempty"`
	Predicate string        `json:"predicate"`
	Objects   []string      `json:"objects,omitempty"`
}

// Rule routes matching evaluations to a serve strategy.
// Name is optional and reserved for rule naming; it never changes routing.
type Rule struct {
	Name       string      `json:"name,omitempty"`
	Conditions []Condition `json:"conditions"`
	Serve      Serve       `json:"serve"`
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	out := Rule{Name: r.Name, Serve: r.Serve.Clone()}
	if r.Conditions != nil {
		out.Conditions = make([]Condition, len(r.Conditions))
		for i, c := range r.Conditions {
			out.Conditions[i] = c.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the condition.
func (c Condition) Clone() Condition {
	out := c
	if c.Objects != nil {
		out.Objects = append([]string{}, c.Objects...)
	}
	return out
}
