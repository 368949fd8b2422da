// internal/targeting/classify.go
package targeting

import (
	"reflect"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/solatis/flagkeeper/internal/types"
)

/*
 * Change classifier.
 *
 * Two tiers:
 *   - Equal: deep structural equality of two canonical snapshots, nil and
 *     empty lists equal. Cheap enough to run after every mutation.
 *   - Material: whether the transition can change which variation an
 *     already exposed user gets. Computed only when a publish is about to
 *     be confirmed.
 *
 * Lists are compared index by index. Before the field diff, a position
 * whose new entry is an exact copy of an entry that sat elsewhere (and is
 * not still in place there) is reported as moved; a move is always
 * material, whatever fields happen to differ between the two positions.
 * A length change is always material. A field edit of a variation or rule
 * is material unless the field is in the section's cosmetic set. Any change to disabled, defaultServe or disabledServe is
 * material.
 *
 * Field edits are discovered with a cmp.Reporter; the reported field is the
 * top-level wire name (json tag) of the entry field that differs, so a
 * change deep inside a rule's conditions reports as "conditions".
 */

// Section names a part of the configuration.
type Section string

const (
	SectionStatus     Section = "status"
	SectionVariations Section = "variations"
	SectionRules      Section = "rules"
	SectionDefault    Section = "default"
	SectionDisabled   Section = "disabled"
)

// ChangeKind tells how an entry changed.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeEdited  ChangeKind = "edited"
	ChangeMoved   ChangeKind = "moved"
)

// Change is one difference between two snapshots.
// Index is -1 for sections that are not lists; Field is empty for
// whole-entry changes.
type Change struct {
	Section  Section
	Index    int
	Field    string
	Kind     ChangeKind
	Material bool
}

// Classification is the outcome of comparing two snapshots.
type Classification struct {
	Equal    bool
	Material bool
	Changes  []Change
}

// DefaultCosmeticVariationFields are variation fields whose edits do not
// count as material.
var DefaultCosmeticVariationFields = []string{"value", "description"}

// Classifier compares canonical configurations.
type Classifier struct {
	cosmeticVariation map[string]bool
	cosmeticRule      map[string]bool
}

// NewClassifier returns a classifier treating edits of the named variation
// fields (wire names) as cosmetic. With no fields it uses
// DefaultCosmeticVariationFields. A rule's name is always cosmetic.
func NewClassifier(cosmeticVariationFields ...string) Classifier {
	if len(cosmeticVariationFields) == 0 {
		cosmeticVariationFields = DefaultCosmeticVariationFields
	}
	c := Classifier{
		cosmeticVariation: make(map[string]bool, len(cosmeticVariationFields)),
		cosmeticRule:      map[string]bool{"name": true},
	}
	for _, f := range cosmeticVariationFields {
		c.cosmeticVariation[f] = true
	}
	return c
}

// Equal reports deep structural equality of two snapshots.
func (c Classifier) Equal(before, after types.Configuration) bool {
	return cmp.Equal(before, after, cmpopts.EquateEmpty())
}

// Classify compares two snapshots and reports every change.
func (c Classifier) Classify(before, after types.Configuration) Classification {
	if c.Equal(before, after) {
		return Classification{Equal: true}
	}

	var changes []Change
	if before.Disabled != after.Disabled {
		changes = append(changes, Change{Section: SectionStatus, Index: -1, Field: "disabled", Kind: ChangeEdited, Material: true})
	}
	changes = append(changes, diffList(SectionVariations, before.Content.Variations, after.Content.Variations, c.cosmeticVariation)...)
	changes = append(changes, diffList(SectionRules, before.Content.Rules, after.Content.Rules, c.cosmeticRule)...)
	if !cmp.Equal(before.Content.DefaultServe, after.Content.DefaultServe, cmpopts.EquateEmpty()) {
		changes = append(changes, Change{Section: SectionDefault, Index: -1, Field: "defaultServe", Kind: ChangeEdited, Material: true})
	}
	if !cmp.Equal(before.Content.DisabledServe, after.Content.DisabledServe, cmpopts.EquateEmpty()) {
		changes = append(changes, Change{Section: SectionDisabled, Index: -1, Field: "disabledServe", Kind: ChangeEdited, Material: true})
	}

	out := Classification{Changes: changes}
	for _, ch := range changes {
		if ch.Material {
			out.Material = true
			break
		}
	}
	return out
}

// Sections returns the sections touched by the classification, in
// configuration order.
func (cl Classification) Sections() map[Section]bool {
	out := make(map[Section]bool, len(cl.Changes))
	for _, ch := range cl.Changes {
		out[ch.Section] = true
	}
	return out
}

func diffList[T any](section Section, before, after []T, cosmetic map[string]bool) []Change {
	var changes []Change
	common := min(len(before), len(after))
	moved := movedEntries(before, after)

	for i := 0; i < common; i++ {
		if moved[i] {
			changes = append(changes, Change{Section: section, Index: i, Kind: ChangeMoved, Material: true})
			continue
		}
		var r fieldReporter
		if cmp.Equal(before[i], after[i], cmpopts.EquateEmpty(), cmp.Reporter(&r)) {
			continue
		}
		for _, f := range r.fields {
			changes = append(changes, Change{
				Section:  section,
				Index:    i,
				Field:    f,
				Kind:     ChangeEdited,
				Material: !cosmetic[f],
			})
		}
	}
	for i := common; i < len(before); i++ {
		changes = append(changes, Change{Section: section, Index: i, Kind: ChangeRemoved, Material: true})
	}
	for i := common; i < len(after); i++ {
		changes = append(changes, Change{Section: section, Index: i, Kind: ChangeAdded, Material: true})
	}
	return changes
}

// movedEntries marks the positions of after that differ from before at
// the same index but hold an exact copy of another before entry. Each
// before entry is claimed at most once, and entries still in place are
// never claimed.
func movedEntries[T any](before, after []T) map[int]bool {
	equal := func(a, b T) bool { return cmp.Equal(a, b, cmpopts.EquateEmpty()) }

	claimed := make([]bool, len(before))
	for i := range min(len(before), len(after)) {
		if equal(before[i], after[i]) {
			claimed[i] = true
		}
	}

	moved := make(map[int]bool)
	for i := range after {
		if i < len(before) && equal(before[i], after[i]) {
			continue
		}
		for j := range before {
			if j != i && !claimed[j] && equal(before[j], after[i]) {
				claimed[j] = true
				moved[i] = true
				break
			}
		}
	}
	return moved
}

// fieldReporter collects the top-level wire field names of unequal leaves.
type fieldReporter struct {
	path   cmp.Path
	fields []string
}

func (r *fieldReporter) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *fieldReporter) PopStep() {
	r.path = r.path[:len(r.path)-1]
}

func (r *fieldReporter) Report(rs cmp.Result) {
	if rs.Equal() {
		return
	}
	name := r.topField()
	for _, f := range r.fields {
		if f == name {
			return
		}
	}
	r.fields = append(r.fields, name)
}

func (r *fieldReporter) topField() string {
	for i := 1; i < len(r.path); i++ {
		sf, ok := r.path[i].(cmp.StructField)
		if !ok {
			continue
		}
		parent := r.path[i-1].Type()
		if parent.Kind() == reflect.Struct {
			if tag, _, _ := strings.Cut(parent.Field(sf.Index()).Tag.Get("json"), ","); tag != "" {
				return tag
			}
		}
		return sf.Name()
	}
	return ""
}
