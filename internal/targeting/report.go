// internal/targeting/report.go
package targeting

import (
	"encoding/json"

	"github.com/aymanbagabas/go-udiff"

	"github.com/solatis/flagkeeper/internal/types"
)

/*
 * Confirmation diff report.
 *
 * The confirmation dialog shows five sections side by side. Each side is
 * rendered as indented JSON and the pair is run through a unified diff.
 * Serves are resolved to variation names against their own side's
 * variation list, so a serve that kept its index but now points at a
 * renamed variation shows the new name. A serve that does not resolve is
 * shown raw.
 */

// ReportSection is one block of the confirmation diff.
type ReportSection struct {
	Key     Section `json:"key"`
	Title   string  `json:"title"`
	Before  string  `json:"before"`
	After   string  `json:"after"`
	Diff    string  `json:"diff"`
	Changed bool    `json:"changed"`
}

// Report is the full confirmation diff.
type Report struct {
	Sections []ReportSection `json:"sections"`
}

// Changed returns only the sections that differ.
func (r Report) Changed() []ReportSection {
	var out []ReportSection
	for _, s := range r.Sections {
		if s.Changed {
			out = append(out, s)
		}
	}
	return out
}

// reportRule is a rule with its serve resolved for display.
type reportRule struct {
	Name       string            `json:"name,omitempty"`
	Conditions []types.Condition `json:"conditions"`
	Serve      any               `json:"serve"`
}

// BuildReport renders the confirmation diff of a classified transition.
func BuildReport(l Localizer, before, after types.Configuration, cl Classification) (Report, error) {
	if l == nil {
		l = KeyLocalizer{}
	}
	changed := cl.Sections()

	type side struct{ before, after any }
	parts := []struct {
		key   Section
		title string
		side  side
	}{
		{SectionStatus, MsgSectionStatus, side{statusView(before), statusView(after)}},
		{SectionVariations, MsgSectionVariations, side{variationsView(before), variationsView(after)}},
		{SectionRules, MsgSectionRules, side{rulesView(before), rulesView(after)}},
		{SectionDefault, MsgSectionDefault, side{
			serveView(before.Content.DefaultServe, before.Content.Variations),
			serveView(after.Content.DefaultServe, after.Content.Variations),
		}},
		{SectionDisabled, MsgSectionDisabled, side{
			serveView(before.Content.DisabledServe, before.Content.Variations),
			serveView(after.Content.DisabledServe, after.Content.Variations),
		}},
	}

	report := Report{Sections: make([]ReportSection, 0, len(parts))}
	for _, p := range parts {
		b, err := indentJSON(p.side.before)
		if err != nil {
			return Report{}, err
		}
		a, err := indentJSON(p.side.after)
		if err != nil {
			return Report{}, err
		}
		sec := ReportSection{
			Key:     p.key,
			Title:   l.Text(p.title),
			Before:  b,
			After:   a,
			Changed: changed[p.key],
		}
		if b != a {
			sec.Diff = udiff.Unified("before", "after", b, a)
		}
		report.Sections = append(report.Sections, sec)
	}
	return report, nil
}

func statusView(c types.Configuration) any {
	return struct {
		Disabled bool `json:"disabled"`
	}{c.Disabled}
}

func variationsView(c types.Configuration) any {
	if c.Content.Variations == nil {
		return []types.Variation{}
	}
	return c.Content.Variations
}

func rulesView(c types.Configuration) any {
	out := make([]reportRule, len(c.Content.Rules))
	for i, r := range c.Content.Rules {
		conds := r.Conditions
		if conds == nil {
			conds = []types.Condition{}
		}
		out[i] = reportRule{
			Name:       r.Name,
			Conditions: conds,
			Serve:      serveView(r.Serve, c.Content.Variations),
		}
	}
	return out
}

func serveView(s types.Serve, variations []types.Variation) any {
	sum, err := Resolve(s, variations)
	if err != nil {
		return s
	}
	return sum
}

func indentJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
