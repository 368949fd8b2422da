// internal/targeting/serve.go
package targeting

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/solatis/flagkeeper/internal/types"
)

/*
 * Serve strategy model.
 *
 * Three views of a serve strategy:
 *   - CheckServe: full invariant check (index range, split length and total)
 *   - Project: the weaker guard applied before binding a persisted strategy
 *     to edit fields; only index range matters, anything else is left to
 *     the validator
 *   - Resolve: human-readable summary ("name" or "name: pct%" pairs) used
 *     by the confirmation diff
 *
 * Every consumer switches on the concrete Strategy type. An unset Serve is
 * a distinct state (types.ErrServeUnset), never a silent default.
 */

// CheckServe verifies s against a list of n variations.
func CheckServe(s types.Serve, n int) error {
	switch st := s.Strategy.(type) {
	case types.Select:
		if st.Index < 0 || st.Index >= n {
			return fmt.Errorf("%w: select %d of %d", types.ErrVariationIndex, st.Index, n)
		}
		return nil
	case types.Split:
		if len(st.Weights) != n {
			return fmt.Errorf("%w: %d weights for %d variations", types.ErrSplitLength, len(st.Weights), n)
		}
		total := 0
		for i, w := range st.Weights {
			if w < 0 {
				return fmt.Errorf("%w: weights[%d] = %d", types.ErrNegativeWeight, i, w)
			}
			total += w
		}
		if total != types.SplitTotal {
			return fmt.Errorf("%w: got %d", types.ErrSplitTotal, total)
		}
		return nil
	case nil:
		return types.ErrServeUnset
	default:
		return fmt.Errorf("unknown serve strategy %T", st)
	}
}

// Project returns a copy of s when every variation index it references is
// below n. Otherwise it returns an unset Serve and false, so the edit field
// stays empty and the author has to pick again.
func Project(s types.Serve, n int) (types.Serve, bool) {
	switch st := s.Strategy.(type) {
	case types.Select:
		if st.Index < 0 || st.Index >= n {
			return types.Serve{}, false
		}
	case types.Split:
		if len(st.Weights) > n {
			return types.Serve{}, false
		}
	default:
		return types.Serve{}, false
	}
	return s.Clone(), true
}

// Summary is the human-readable form of a serve strategy.
// Exactly one of Select or Split is populated.
type Summary struct {
	Select string   `json:"select,omitempty"`
	Split  []string `json:"split,omitempty"`
}

// String joins the summary into one line.
func (s Summary) String() string {
	if len(s.Split) > 0 {
		return strings.Join(s.Split, ", ")
	}
	return s.Select
}

// Resolve maps a strategy to variation names. Select resolves to the
// variation's name; Split to "name: pct%" where pct = weight/100.
// An index outside variations fails with types.ErrVariationIndex.
func Resolve(s types.Serve, variations []types.Variation) (Summary, error) {
	switch st := s.Strategy.(type) {
	case types.Select:
		if st.Index < 0 || st.Index >= len(variations) {
			return Summary{}, fmt.Errorf("%w: select %d of %d", types.ErrVariationIndex, st.Index, len(variations))
		}
		return Summary{Select: variations[st.Index].Name}, nil
	case types.Split:
		if len(st.Weights) > len(variations) {
			return Summary{}, fmt.Errorf("%w: %d weights for %d variations", types.ErrVariationIndex, len(st.Weights), len(variations))
		}
		parts := make([]string, len(st.Weights))
		for i, w := range st.Weights {
			parts[i] = fmt.Sprintf("%s: %s%%", variations[i].Name, humanize.Ftoa(float64(w)/100))
		}
		return Summary{Split: parts}, nil
	case nil:
		return Summary{}, types.ErrServeUnset
	default:
		return Summary{}, fmt.Errorf("unknown serve strategy %T", st)
	}
}

// DisplayName is the label of a variation: its name, or its value when unnamed.
func DisplayName(v types.Variation) string {
	if v.Name != "" {
		return v.Name
	}
	return v.Value
}
