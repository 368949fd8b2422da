// internal/targeting/normalize_test.go
package targeting

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/flagkeeper/internal/types"
)

func TestNormalizer_ToEditModel(t *testing.T) {
	e := testEngine()
	n := e.Normalizer()
	c := ruleConfig()

	m := n.ToEditModel(c)

	if len(m.Variations) != 2 || len(m.Rules) != 2 {
		t.Fatalf("got %d variations, %d rules, want 2 and 2", len(m.Variations), len(m.Rules))
	}

	seen := map[types.EphemeralID]bool{}
	for id := range m.Index() {
		if id == "" {
			t.Errorf("empty ephemeral id in model")
		}
		seen[id] = true
	}
	// 2 variations + 2 rules + 3 conditions
	if len(seen) != 7 {
		t.Errorf("unique ids = %d, want 7", len(seen))
	}

	for i, r := range m.Rules {
		if !r.Active {
			t.Errorf("Rules[%d].Active = false, want true", i)
		}
	}
	if m.Rules[0].Name != "paris" {
		t.Errorf("Rules[0].Name = %q, want %q", m.Rules[0].Name, "paris")
	}

	dt := m.Rules[1].Conditions[1]
	if dt.Datetime != "2023-05-01T10:00:00" || dt.Timezone != "+08:00" {
		t.Errorf("datetime condition = (%q, %q), want (2023-05-01T10:00:00, +08:00)", dt.Datetime, dt.Timezone)
	}
	if seg := m.Rules[1].Conditions[0]; seg.Subject != SubjectPlaceholderKey {
		t.Errorf("segment Subject = %q, want %q", seg.Subject, SubjectPlaceholderKey)
	}
}

func TestNormalizer_NoAliasing(t *testing.T) {
	n := testEngine().Normalizer()
	c := ruleConfig()

	m := n.ToEditModel(c)
	m.Variations[0].Value = "changed"
	m.Rules[0].Conditions[0].Objects[0] = "Berlin"
	m.DefaultServe = types.SplitServe(5000, 5000)

	if c.Content.Variations[0].Value != "false" {
		t.Errorf("source variation mutated: %q", c.Content.Variations[0].Value)
	}
	if c.Content.Rules[0].Conditions[0].Objects[0] != "Paris" {
		t.Errorf("source condition mutated: %q", c.Content.Rules[0].Conditions[0].Objects[0])
	}

	w := n.ToWireModel(m)
	w.Content.Rules[0].Conditions[0].Objects[0] = "Rome"
	if m.Rules[0].Conditions[0].Objects[0] != "Berlin" {
		t.Errorf("edit model mutated through wire model: %q", m.Rules[0].Conditions[0].Objects[0])
	}
}

func TestNormalizer_EmptyListsEncodeAsArrays(t *testing.T) {
	n := testEngine().Normalizer()

	w := n.ToWireModel(EditModel{DefaultServe: types.SelectServe(0), DisabledServe: types.SelectServe(0)})
	if w.Content.Rules == nil || w.Content.Variations == nil {
		t.Errorf("ToWireModel() lists = (%v, %v), want non-nil", w.Content.Rules, w.Content.Variations)
	}
}

func TestNormalizer_Form(t *testing.T) {
	n := testEngine().Normalizer()
	c := ruleConfig()
	c.Content.DefaultServe = types.SelectServe(5)
	c.Content.Rules[1].Serve = types.SplitServe(2500, 2500, 5000)

	m := n.ToEditModel(c)
	f := n.Form(m)

	if f.DefaultServe.IsSet() {
		t.Errorf("DefaultServe = %+v, want unset for dangling index", f.DefaultServe)
	}
	if !f.DisabledServe.IsSet() {
		t.Errorf("DisabledServe unset, want select 0")
	}
	if got := f.RuleServes[m.Rules[0].ID]; !cmp.Equal(got, types.SelectServe(1)) {
		t.Errorf("RuleServes[0] = %+v, want select 1", got)
	}
	if got := f.RuleServes[m.Rules[1].ID]; got.IsSet() {
		t.Errorf("RuleServes[1] = %+v, want unset for oversized split", got)
	}

	// The model itself keeps the persisted serve; only the form drops it.
	if !m.DefaultServe.IsSet() {
		t.Errorf("model DefaultServe cleared, want unchanged")
	}
}

func TestNormalizer_RoundTripExample(t *testing.T) {
	n := testEngine().Normalizer()
	c := ruleConfig()

	got := n.ToWireModel(n.ToEditModel(c))
	if diff := cmp.Diff(c, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// Property-based test: toWireModel(toEditModel(C)) == C
func TestNormalizer_PropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	n := testEngine().Normalizer()

	properties.Property("round trip preserves canonical configuration", prop.ForAll(
		func(seed int64, nVariations int, nRules int) bool {
			c := randomConfig(seed, nVariations, nRules)
			got := n.ToWireModel(n.ToEditModel(c))
			return cmp.Equal(c, got, cmpopts.EquateEmpty())
		},
		gen.Int64(),
		gen.IntRange(1, 6),
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}
