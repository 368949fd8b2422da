// internal/targeting/validate.go
package targeting

import (
	"errors"
	"fmt"
	"strings"

	"github.com/solatis/flagkeeper/internal/types"
)

/*
 * Pre-publish validator.
 *
 * Checks run in model order: rules first, then variations, then serves.
 * Every failure becomes a FieldError scoped to the ephemeral id of the
 * offending entry (serve errors on the default and disabled serve have no
 * entry and an empty Scope). The result is never returned as a Go error
 * from Validate; callers decide display order and focus.
 *
 * Field names follow the editor's form field naming:
 *   rule_<id>_add            rule without conditions
 *   rule_<id>_serve          rule serve unset or invalid
 *   variation_<id>_normal    empty value, boolean return type
 *   variation_<id>           empty value, other return types
 *   defaultServe, disabledServe
 */

// ErrorKind classifies a FieldError.
type ErrorKind string

const (
	KindMissingCondition ErrorKind = "missing_condition"
	KindEmptyValue       ErrorKind = "empty_value"
	KindInvalidServe     ErrorKind = "invalid_serve"
)

// FieldError is one validation failure bound to an edit field.
type FieldError struct {
	Field      string
	Scope      types.EphemeralID
	Path       string
	Kind       ErrorKind
	MessageKey string
	Message    string
	// Err is the underlying serve error for KindInvalidServe.
	Err error
}

func (e FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e FieldError) Unwrap() error { return e.Err }

// ValidationResult aggregates field errors. No errors means valid.
type ValidationResult struct {
	Errors []FieldError
}

// Valid reports whether the model passed every check.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// First returns the error that should receive focus.
func (r ValidationResult) First() (FieldError, bool) {
	if len(r.Errors) == 0 {
		return FieldError{}, false
	}
	return r.Errors[0], true
}

// For returns the errors scoped to id.
func (r ValidationResult) For(id types.EphemeralID) []FieldError {
	var out []FieldError
	for _, fe := range r.Errors {
		if fe.Scope == id {
			out = append(out, fe)
		}
	}
	return out
}

// Err joins all field errors, or returns nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, fe := range r.Errors {
		errs[i] = fe
	}
	return errors.Join(errs...)
}

// Validator checks edit models for publishability.
type Validator struct {
	localizer Localizer
}

// NewValidator returns a validator rendering messages through l.
func NewValidator(l Localizer) Validator {
	if l == nil {
		l = KeyLocalizer{}
	}
	return Validator{localizer: l}
}

// Validate reports every publish blocker in m. It never mutates m.
func (v Validator) Validate(m EditModel, toggle types.ToggleInfo) ValidationResult {
	var res ValidationResult
	count := len(m.Variations)

	for i, r := range m.Rules {
		if len(r.Conditions) == 0 {
			res.Errors = append(res.Errors, v.fieldError(
				fmt.Sprintf("rule_%s_add", r.ID), r.ID, rulePath(i)+".conditions",
				KindMissingCondition, MsgInputRequired, nil))
		}
	}

	for i, vr := range m.Variations {
		if strings.TrimSpace(vr.Value) != "" {
			continue
		}
		field, key := fmt.Sprintf("variation_%s", vr.ID), MsgInputRequired
		if toggle.ReturnType == types.ReturnBoolean {
			field, key = fmt.Sprintf("variation_%s_normal", vr.ID), MsgReturnTypeRequired
		}
		res.Errors = append(res.Errors, v.fieldError(
			field, vr.ID, fmt.Sprintf("content.variations[%d].value", i),
			KindEmptyValue, key, nil))
	}

	for i, r := range m.Rules {
		if err := CheckServe(r.Serve, count); err != nil {
			res.Errors = append(res.Errors, v.fieldError(
				fmt.Sprintf("rule_%s_serve", r.ID), r.ID, rulePath(i)+".serve",
				KindInvalidServe, MsgServeRequired, err))
		}
	}
	if err := CheckServe(m.DefaultServe, count); err != nil {
		res.Errors = append(res.Errors, v.fieldError(
			"defaultServe", "", "content.defaultServe", KindInvalidServe, MsgServeRequired, err))
	}
	if err := CheckServe(m.DisabledServe, count); err != nil {
		res.Errors = append(res.Errors, v.fieldError(
			"disabledServe", "", "content.disabledServe", KindInvalidServe, MsgServeRequired, err))
	}

	return res
}

func (v Validator) fieldError(field string, scope types.EphemeralID, path string, kind ErrorKind, key string, err error) FieldError {
	return FieldError{
		Field:      field,
		Scope:      scope,
		Path:       path,
		Kind:       kind,
		MessageKey: key,
		Message:    v.localizer.Text(key),
		Err:        err,
	}
}
