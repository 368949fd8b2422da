package targeting

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/solatis/flagkeeper/internal/types"
)

// seqIDs returns an id source producing id-1, id-2, ...
func seqIDs() func() types.EphemeralID {
	n := 0
	return func() types.EphemeralID {
		n++
		return types.EphemeralID(fmt.Sprintf("id-%d", n))
	}
}

var fixedNow = time.Date(2024, 3, 9, 14, 30, 0, 0, time.FixedZone("CET", 3600))

func testEngine(opts ...Option) *Engine {
	base := []Option{
		WithIDSource(seqIDs()),
		WithClock(func() time.Time { return fixedNow }),
	}
	return NewEngine(append(base, opts...)...)
}

func twoVariations() []types.Variation {
	return []types.Variation{
		{Name: "A", Value: "false", Description: "off"},
		{Name: "B", Value: "true", Description: "on"},
	}
}

// baseConfig is {disabled:false, variations:[A,B], rules:[], defaultServe:{select:0}, disabledServe:{select:0}}.
func baseConfig() types.Configuration {
	return types.Configuration{
		Content: types.Content{
			Rules:         []types.Rule{},
			Variations:    twoVariations(),
			DefaultServe:  types.SelectServe(0),
			DisabledServe: types.SelectServe(0),
		},
	}
}

func ruleConfig() types.Configuration {
	c := baseConfig()
	c.Content.Rules = []types.Rule{
		{
			Name: "paris",
			Conditions: []types.Condition{
				{Type: types.ConditionString, Subject: "city", Predicate: "is one of", Objects: []string{"Paris"}},
			},
			Serve: types.SelectServe(1),
		},
		{
			Conditions: []types.Condition{
				{Type: types.ConditionSegment, Predicate: "is in", Objects: []string{"beta"}},
				{Type: types.ConditionDatetime, Subject: "now", Predicate: "after", Objects: []string{"2023-05-01T10:00:00+08:00"}},
			},
			Serve: types.SplitServe(2500, 7500),
		},
	}
	return c
}

var conditionPredicates = map[types.ConditionType][]string{
	types.ConditionString:   {"is one of", "ends with", "matches regex"},
	types.ConditionNumber:   {"=", ">", "<="},
	types.ConditionSemver:   {"=", "after", "before"},
	types.ConditionDatetime: {"after", "before"},
	types.ConditionSegment:  {"is in", "is not in"},
}

// randomConfig builds a canonical configuration whose serves all resolve
// against its variations.
func randomConfig(seed int64, nVariations, nRules int) types.Configuration {
	r := rand.New(rand.NewSource(seed))
	c := types.Configuration{Disabled: r.Intn(2) == 0}

	c.Content.Variations = make([]types.Variation, nVariations)
	for i := range c.Content.Variations {
		c.Content.Variations[i] = types.Variation{
			Name:        fmt.Sprintf("v%d", i),
			Value:       fmt.Sprintf("%d", r.Intn(1000)),
			Description: fmt.Sprintf("desc %d", r.Intn(10)),
		}
	}

	c.Content.Rules = make([]types.Rule, nRules)
	for i := range c.Content.Rules {
		rule := types.Rule{Serve: randomServe(r, nVariations)}
		if r.Intn(2) == 0 {
			rule.Name = fmt.Sprintf("rule %d", i)
		}
		for j := 0; j < 1+r.Intn(3); j++ {
			rule.Conditions = append(rule.Conditions, randomCondition(r))
		}
		c.Content.Rules[i] = rule
	}

	c.Content.DefaultServe = randomServe(r, nVariations)
	c.Content.DisabledServe = randomServe(r, nVariations)
	return c
}

func randomServe(r *rand.Rand, n int) types.Serve {
	if r.Intn(2) == 0 {
		return types.SelectServe(r.Intn(n))
	}
	return types.SplitServe(randomWeights(r, n)...)
}

// randomWeights returns n non-negative weights summing to SplitTotal.
func randomWeights(r *rand.Rand, n int) []int {
	weights := make([]int, n)
	left := types.SplitTotal
	for i := 0; i < n-1; i++ {
		weights[i] = r.Intn(left + 1)
		left -= weights[i]
	}
	weights[n-1] = left
	return weights
}

func randomCondition(r *rand.Rand) types.Condition {
	kinds := []types.ConditionType{
		types.ConditionString, types.ConditionNumber, types.ConditionSemver,
		types.ConditionDatetime, types.ConditionSegment,
	}
	kind := kinds[r.Intn(len(kinds))]
	preds := conditionPredicates[kind]
	c := types.Condition{Type: kind, Predicate: preds[r.Intn(len(preds))]}

	switch kind {
	case types.ConditionSegment:
		c.Objects = []string{fmt.Sprintf("segment-%d", r.Intn(5))}
	case types.ConditionDatetime:
		c.Subject = "date"
		ts := time.Unix(r.Int63n(2_000_000_000), 0).In(time.FixedZone("", (r.Intn(25)-12)*3600))
		c.Objects = []string{ts.Format(time.RFC3339)}
	default:
		c.Subject = fmt.Sprintf("attr%d", r.Intn(4))
		for i := 0; i < 1+r.Intn(3); i++ {
			c.Objects = append(c.Objects, fmt.Sprintf("%d", r.Intn(100)))
		}
	}
	return c
}
