// internal/targeting/rules_test.go
package targeting

import (
	"errors"
	"testing"

	"github.com/solatis/flagkeeper/internal/types"
)

func ruleIDs(m EditModel) []types.EphemeralID {
	ids := make([]types.EphemeralID, len(m.Rules))
	for i, r := range m.Rules {
		ids[i] = r.ID
	}
	return ids
}

func TestEditModel_AppendRule(t *testing.T) {
	var m EditModel
	r := m.AppendRule("r1")

	if r.ID != "r1" {
		t.Errorf("ID = %v, want r1", r.ID)
	}
	if !r.Active {
		t.Errorf("Active = false, want true")
	}
	if r.Conditions == nil || len(r.Conditions) != 0 {
		t.Errorf("Conditions = %v, want empty non-nil", r.Conditions)
	}
	if r.Serve.IsSet() {
		t.Errorf("Serve = %+v, want unset", r.Serve)
	}
}

func TestEditModel_MoveRule(t *testing.T) {
	tests := []struct {
		name string
		id   types.EphemeralID
		to   int
		want []types.EphemeralID
	}{
		{"first to last", "a", 2, []types.EphemeralID{"b", "c", "a"}},
		{"last to first", "c", 0, []types.EphemeralID{"c", "a", "b"}},
		{"middle down", "b", 2, []types.EphemeralID{"a", "c", "b"}},
		{"same position", "b", 1, []types.EphemeralID{"a", "b", "c"}},
		{"clamped high", "a", 10, []types.EphemeralID{"b", "c", "a"}},
		{"clamped low", "c", -3, []types.EphemeralID{"c", "a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m EditModel
			m.AppendRule("a")
			m.AppendRule("b")
			m.AppendRule("c")

			if err := m.MoveRule(tt.id, tt.to); err != nil {
				t.Fatalf("MoveRule() error = %v, want nil", err)
			}
			got := ruleIDs(m)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("order = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestEditModel_RemoveThenMove(t *testing.T) {
	var m EditModel
	m.AppendRule("a")
	m.AppendRule("b")
	m.AppendRule("c")

	if err := m.RemoveRule("a"); err != nil {
		t.Fatalf("RemoveRule() error = %v, want nil", err)
	}
	if err := m.MoveRule("c", 0); err != nil {
		t.Fatalf("MoveRule() error = %v, want nil", err)
	}
	got := ruleIDs(m)
	if len(got) != 2 || got[0] != "c" || got[1] != "b" {
		t.Errorf("order = %v, want [c b]", got)
	}
}

func TestEditModel_Conditions(t *testing.T) {
	var m EditModel
	m.AppendRule("r1")
	m.AppendRule("r2")

	if err := m.AppendCondition("r2", EditCondition{ID: "c1", Type: types.ConditionString}); err != nil {
		t.Fatalf("AppendCondition() error = %v, want nil", err)
	}
	if err := m.AppendCondition("r2", EditCondition{ID: "c2", Type: types.ConditionNumber}); err != nil {
		t.Fatalf("AppendCondition() error = %v, want nil", err)
	}

	loc, ok := m.Index()["c2"]
	if !ok {
		t.Fatalf("Index() missing c2")
	}
	if loc.Kind != EntryCondition || loc.Rule != 1 || loc.Condition != 1 {
		t.Errorf("Index()[c2] = %+v, want condition at rule 1, index 1", loc)
	}

	if err := m.RemoveCondition("c1"); err != nil {
		t.Fatalf("RemoveCondition() error = %v, want nil", err)
	}
	if len(m.Rules[1].Conditions) != 1 || m.Rules[1].Conditions[0].ID != "c2" {
		t.Errorf("Conditions = %+v, want only c2", m.Rules[1].Conditions)
	}
}

func TestEditModel_UnknownID(t *testing.T) {
	var m EditModel
	m.AppendRule("r1")
	m.AppendVariation("v1", types.Variation{Value: "x"})

	tests := []struct {
		name string
		op   func() error
	}{
		{"remove missing rule", func() error { return m.RemoveRule("nope") }},
		{"move missing rule", func() error { return m.MoveRule("nope", 0) }},
		{"variation id as rule", func() error { return m.RemoveRule("v1") }},
		{"rule id as variation", func() error { return m.RemoveVariation("r1") }},
		{"condition on missing rule", func() error { return m.AppendCondition("nope", EditCondition{ID: "c"}) }},
		{"remove missing condition", func() error { return m.RemoveCondition("nope") }},
		{"activate missing rule", func() error { return m.SetRuleActive("nope", true) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); !errors.Is(err, types.ErrUnknownID) {
				t.Errorf("error = %v, want %v", err, types.ErrUnknownID)
			}
		})
	}
}

func TestEditModel_ExpandInvalid(t *testing.T) {
	var m EditModel
	m.AppendVariation("v1", types.Variation{Value: "x"})
	m.AppendRule("ok").Serve = types.SelectServe(0)
	m.AppendRule("bad").Serve = types.SelectServe(0)
	_ = m.AppendCondition("ok", EditCondition{ID: "c1", Type: types.ConditionString})
	_ = m.SetRuleActive("ok", false)
	_ = m.SetRuleActive("bad", false)

	res := NewValidator(nil).Validate(m, types.ToggleInfo{})
	m.ExpandInvalid(res)

	if m.Rules[0].Active {
		t.Errorf("valid rule Active = true, want false")
	}
	if !m.Rules[1].Active {
		t.Errorf("invalid rule Active = false, want true")
	}
}
