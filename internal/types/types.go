// Package types provides domain models shared across flagkeeper components.
//
// Wire contract: the canonical Configuration defined here is exactly what the
// persistence service stores and what evaluation consumes. Field names and
// nesting are fixed by the json tags; editing artifacts (ephemeral ids,
// expand flags, split datetime fields) never appear in these types and live
// in internal/targeting instead.
//
// ID utilities in ids.go import uuid but are isolated from the wire types.
package types

import "encoding/json"

// ConditionType selects how a condition's operands are interpreted.
type ConditionType string

const (
	ConditionString   ConditionType = "string"
	ConditionNumber   ConditionType = "number"
	ConditionSemver   ConditionType = "semver"
	ConditionDatetime ConditionType = "datetime"
	ConditionSegment  ConditionType = "segment"
)

// ReturnType is the value type a toggle serves.
type ReturnType string

const (
	ReturnBoolean ReturnType = "boolean"
	ReturnString  ReturnType = "string"
	ReturnNumber  ReturnType = "number"
	ReturnJSON    ReturnType = "json"
)

// SplitTotal is the sum every Split strategy's weights must reach.
// Weights are basis points: 10000 = 100%.
const SplitTotal = 10000

// ToggleKey addresses one targeting configuration.
type ToggleKey struct {
	Project     string `json:"projectKey" validate:"required"`
	Environment string `json:"environmentKey" validate:"required"`
	Toggle      string `json:"toggleKey" validate:"required"`
}

// String renders the key as project/environment/toggle for logs.
func (k ToggleKey) String() string {
	return k.Project + "/" + k.Environment + "/" + k.Toggle
}

// Configuration is the canonical, persisted targeting of one toggle.
type Configuration struct {
	Disabled bool    `json:"disabled"`
	Content  Content `json:"content"`
}

// Content holds the targeting body. Rule order is priority order.
type Content struct {
	Rules         []Rule      `json:"rules"`
	DisabledServe Serve       `json:"disabledServe"`
	DefaultServe  Serve       `json:"defaultServe"`
	Variations    []Variation `json:"variations"`
}

// Variation is one treatment value a toggle can serve.
type Variation struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// Clone returns a deep copy; slices in the copy never alias c.
func (c Configuration) Clone() Configuration {
	out := Configuration{
		Disabled: c.Disabled,
		Content: Content{
			DisabledServe: c.Content.DisabledServe.Clone(),
			DefaultServe:  c.Content.DefaultServe.Clone(),
		},
	}
	if c.Content.Variations != nil {
		out.Content.Variations = append([]Variation{}, c.Content.Variations...)
	}
	if c.Content.Rules != nil {
		out.Content.Rules = make([]Rule, len(c.Content.Rules))
		for i, r := range c.Content.Rules {
			out.Content.Rules[i] = r.Clone()
		}
	}
	return out
}

// ParseConfiguration decodes canonical JSON.
// Serve shape errors surface as ErrAmbiguousServe / ErrEmptyServe.
func ParseConfiguration(data []byte) (Configuration, error) {
	var c Configuration
	if err := json.Unmarshal(data, &c); err != nil {
		return Configuration{}, err
	}
	return c, nil
}
