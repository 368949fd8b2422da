// internal/targeting/normalize.go
package targeting

import (
	"github.com/solatis/flagkeeper/internal/types"
)

/*
 * Configuration normalizer.
 *
 * ToEditModel and ToWireModel move a whole configuration between the
 * canonical and edit shapes. Both deep-clone: the edit model never aliases
 * the loaded configuration and the wire model never aliases the edit model,
 * so a snapshot taken before a mutation stays valid after it.
 *
 * Serves are copied unchanged in both directions. Binding them to edit
 * fields goes through Form, which applies the projection guard so a serve
 * pointing at a removed variation shows up as unset.
 *
 * ToWireModel always emits non-nil lists; the wire shape carries [] for an
 * empty rule or variation list, never null.
 */

// Normalizer converts configurations using a Codec for conditions.
type Normalizer struct {
	codec Codec
	newID func() types.EphemeralID
}

// NewNormalizer builds a normalizer sharing the codec's id source.
func NewNormalizer(codec Codec) Normalizer {
	return Normalizer{codec: codec, newID: codec.newID}
}

// ToEditModel converts a canonical configuration for editing. Every list
// entry gets a fresh ephemeral id and every rule starts expanded.
func (n Normalizer) ToEditModel(c types.Configuration) EditModel {
	m := EditModel{
		Disabled:      c.Disabled,
		Variations:    make([]EditVariation, 0, len(c.Content.Variations)),
		Rules:         make([]EditRule, 0, len(c.Content.Rules)),
		DefaultServe:  c.Content.DefaultServe.Clone(),
		DisabledServe: c.Content.DisabledServe.Clone(),
	}

	for _, v := range c.Content.Variations {
		m.AppendVariation(n.newID(), v)
	}

	for _, r := range c.Content.Rules {
		er := EditRule{
			ID:         n.newID(),
			Active:     true,
			Name:       r.Name,
			Conditions: make([]EditCondition, 0, len(r.Conditions)),
			Serve:      r.Serve.Clone(),
		}
		for _, cond := range r.Conditions {
			er.Conditions = append(er.Conditions, n.codec.ToEdit(cond))
		}
		m.Rules = append(m.Rules, er)
	}

	return m
}

// ToWireModel converts an edit model to the canonical configuration that
// would be submitted now. Ids and expand flags are dropped.
func (n Normalizer) ToWireModel(m EditModel) types.Configuration {
	c := types.Configuration{
		Disabled: m.Disabled,
		Content: types.Content{
			Rules:         make([]types.Rule, 0, len(m.Rules)),
			Variations:    make([]types.Variation, 0, len(m.Variations)),
			DefaultServe:  m.DefaultServe.Clone(),
			DisabledServe: m.DisabledServe.Clone(),
		},
	}

	for _, v := range m.Variations {
		c.Content.Variations = append(c.Content.Variations, types.Variation{
			Name:        v.Name,
			Value:       v.Value,
			Description: v.Description,
		})
	}

	for _, r := range m.Rules {
		rule := types.Rule{
			Name:       r.Name,
			Conditions: make([]types.Condition, 0, len(r.Conditions)),
			Serve:      r.Serve.Clone(),
		}
		for _, ec := range r.Conditions {
			rule.Conditions = append(rule.Conditions, n.codec.ToCanonical(ec))
		}
		c.Content.Rules = append(c.Content.Rules, rule)
	}

	return c
}

// Form is the set of serve fields bound to the editor. A field the
// persisted strategy could not be projected into is left unset.
type Form struct {
	DefaultServe  types.Serve
	DisabledServe types.Serve
	RuleServes    map[types.EphemeralID]types.Serve
}

// Form projects the model's serves against its live variation list.
func (n Normalizer) Form(m EditModel) Form {
	count := len(m.Variations)
	f := Form{RuleServes: make(map[types.EphemeralID]types.Serve, len(m.Rules))}
	f.DefaultServe, _ = Project(m.DefaultServe, count)
	f.DisabledServe, _ = Project(m.DisabledServe, count)
	for _, r := range m.Rules {
		f.RuleServes[r.ID], _ = Project(r.Serve, count)
	}
	return f
}
