// internal/targeting/rules.go
package targeting

import (
	"fmt"

	"github.com/solatis/flagkeeper/internal/types"
)

/*
 * Rule model: authoring operations on the ordered rule list.
 *
 * Order is priority; the evaluator serves the first rule whose conditions
 * all match. These operations only shape the list. They may leave the
 * model invalid (a fresh rule has no conditions and no serve); the
 * validator reports that before publish.
 *
 * All lookups go through the id index, never through positions held by
 * the caller, so a remove followed by a move still targets the right rule.
 */

// AppendRule adds an empty, expanded rule at the lowest priority.
func (m *EditModel) AppendRule(id types.EphemeralID) *EditRule {
	m.Rules = append(m.Rules, EditRule{
		ID:         id,
		Active:     true,
		Conditions: []EditCondition{},
	})
	return &m.Rules[len(m.Rules)-1]
}

// Rule returns the rule with the given id for in-place edits.
func (m *EditModel) Rule(id types.EphemeralID) (*EditRule, error) {
	loc, err := m.locate(id, EntryRule)
	if err != nil {
		return nil, err
	}
	return &m.Rules[loc.Rule], nil
}

// RemoveRule deletes a rule and its conditions.
func (m *EditModel) RemoveRule(id types.EphemeralID) error {
	loc, err := m.locate(id, EntryRule)
	if err != nil {
		return err
	}
	m.Rules = append(m.Rules[:loc.Rule], m.Rules[loc.Rule+1:]...)
	return nil
}

// MoveRule moves a rule to position to, shifting the rules in between.
// to is clamped to the list bounds.
func (m *EditModel) MoveRule(id types.EphemeralID, to int) error {
	loc, err := m.locate(id, EntryRule)
	if err != nil {
		return err
	}
	if to < 0 {
		to = 0
	}
	if to > len(m.Rules)-1 {
		to = len(m.Rules) - 1
	}
	if to == loc.Rule {
		return nil
	}

	rule := m.Rules[loc.Rule]
	m.Rules = append(m.Rules[:loc.Rule], m.Rules[loc.Rule+1:]...)
	m.Rules = append(m.Rules[:to], append([]EditRule{rule}, m.Rules[to:]...)...)
	return nil
}

// AppendCondition adds a condition at the end of a rule's AND list.
func (m *EditModel) AppendCondition(ruleID types.EphemeralID, c EditCondition) error {
	rule, err := m.Rule(ruleID)
	if err != nil {
		return err
	}
	rule.Conditions = append(rule.Conditions, c)
	return nil
}

// Condition returns the condition with the given id for in-place edits.
func (m *EditModel) Condition(id types.EphemeralID) (*EditCondition, error) {
	loc, err := m.locate(id, EntryCondition)
	if err != nil {
		return nil, err
	}
	return &m.Rules[loc.Rule].Conditions[loc.Condition], nil
}

// RemoveCondition deletes a condition from its rule.
func (m *EditModel) RemoveCondition(id types.EphemeralID) error {
	loc, err := m.locate(id, EntryCondition)
	if err != nil {
		return err
	}
	conds := m.Rules[loc.Rule].Conditions
	m.Rules[loc.Rule].Conditions = append(conds[:loc.Condition], conds[loc.Condition+1:]...)
	return nil
}

// SetRuleActive expands or collapses a rule in the editor.
func (m *EditModel) SetRuleActive(id types.EphemeralID, active bool) error {
	rule, err := m.Rule(id)
	if err != nil {
		return err
	}
	rule.Active = active
	return nil
}

// ExpandInvalid re-expands every collapsed rule that res reports an error
// for, so the first error can be focused.
func (m *EditModel) ExpandInvalid(res ValidationResult) {
	idx := m.Index()
	for _, fe := range res.Errors {
		loc, ok := idx[fe.Scope]
		if !ok {
			continue
		}
		switch loc.Kind {
		case EntryRule, EntryCondition:
			m.Rules[loc.Rule].Active = true
		}
	}
}

// rulePath renders the wire path of rule i for error messages.
func rulePath(i int) string {
	return fmt.Sprintf("content.rules[%d]", i)
}
