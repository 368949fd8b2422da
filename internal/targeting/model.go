package targeting

import (
	"fmt"

	"github.com/solatis/flagkeeper/internal/types"
)

// EditVariation is a variation as bound to the editor.
type EditVariation struct {
	ID          types.EphemeralID
	Name        string
	Value       string
	Description string
}

// EditRule is a rule as bound to the editor. Active is the UI expand flag.
type EditRule struct {
	ID         types.EphemeralID
	Active     bool
	Name       string
	Conditions []EditCondition
	Serve      types.Serve
}

// EditModel is the editable form of a Configuration. Every list entry
// carries an ephemeral id that is unique within the session.
type EditModel struct {
	Disabled      bool
	Variations    []EditVariation
	Rules         []EditRule
	DefaultServe  types.Serve
	DisabledServe types.Serve
}

// EntryKind tells what an ephemeral id points at.
type EntryKind int

const (
	EntryVariation EntryKind = iota + 1
	EntryRule
	EntryCondition
)

// Location is the position of an entry in an EditModel.
// Condition is only meaningful for EntryCondition.
type Location struct {
	Kind      EntryKind
	Variation int
	Rule      int
	Condition int
}

// Index maps ephemeral ids to their current position.
type Index map[types.EphemeralID]Location

// Index rebuilds the reverse lookup from the model's current order.
// Positions shift on every insert, remove and move, so callers rebuild
// rather than keep an index across mutations.
func (m *EditModel) Index() Index {
	idx := make(Index, len(m.Variations)+len(m.Rules))
	for i, v := range m.Variations {
		idx[v.ID] = Location{Kind: EntryVariation, Variation: i}
	}
	for i, r := range m.Rules {
		idx[r.ID] = Location{Kind: EntryRule, Rule: i}
		for j, c := range r.Conditions {
			idx[c.ID] = Location{Kind: EntryCondition, Rule: i, Condition: j}
		}
	}
	return idx
}

func (m *EditModel) locate(id types.EphemeralID, kind EntryKind) (Location, error) {
	loc, ok := m.Index()[id]
	if !ok || loc.Kind != kind {
		return Location{}, fmt.Errorf("%w: %s", types.ErrUnknownID, id)
	}
	return loc, nil
}

// Variation returns the variation with the given id for in-place edits.
func (m *EditModel) Variation(id types.EphemeralID) (*EditVariation, error) {
	loc, err := m.locate(id, EntryVariation)
	if err != nil {
		return nil, err
	}
	return &m.Variations[loc.Variation], nil
}

// AppendVariation adds a variation at the end of the list.
func (m *EditModel) AppendVariation(id types.EphemeralID, v types.Variation) {
	m.Variations = append(m.Variations, EditVariation{
		ID:          id,
		Name:        v.Name,
		Value:       v.Value,
		Description: v.Description,
	})
}

// RemoveVariation deletes a variation. Serves pointing past the shortened
// list are left for the validator to report.
func (m *EditModel) RemoveVariation(id types.EphemeralID) error {
	loc, err := m.locate(id, EntryVariation)
	if err != nil {
		return err
	}
	m.Variations = append(m.Variations[:loc.Variation], m.Variations[loc.Variation+1:]...)
	return nil
}
