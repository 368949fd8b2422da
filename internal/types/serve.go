package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Strategy is the sealed union of serve strategies: Select or Split.
// Consumers switch on the concrete type; there is no third arm.
type Strategy interface {
	strategy()
}

// Select serves the variation at Index.
type Select struct {
	Index int
}

// Split serves variations by weight. Weights[i] belongs to variation i,
// in basis points summing to SplitTotal.
type Split struct {
	Weights []int
}

func (Select) strategy() {}
func (Split) strategy()  {}

// Serve carries at most one Strategy and owns its wire shape:
// {"select": n} or {"split": [w0, w1, ...]}.
// A zero Serve is unset; it only exists inside edit sessions and
// encodes as null.
type Serve struct {
	Strategy Strategy
}

// SelectServe returns a Serve selecting variation i.
func SelectServe(i int) Serve {
	return Serve{Strategy: Select{Index: i}}
}

// SplitServe returns a Serve splitting by the given weights.
func SplitServe(weights ...int) Serve {
	return Serve{Strategy: Split{Weights: append([]int{}, weights...)}}
}

// IsSet reports whether a strategy is present.
func (s Serve) IsSet() bool {
	return s.Strategy != nil
}

// Clone returns a deep copy; Split weights are not shared.
func (s Serve) Clone() Serve {
	switch st := s.Strategy.(type) {
	case Split:
		if st.Weights == nil {
			return Serve{Strategy: Split{}}
		}
		return Serve{Strategy: Split{Weights: append([]int{}, st.Weights...)}}
	case Select:
		return Serve{Strategy: st}
	default:
		return Serve{}
	}
}

// selectWire and splitWire are the two arms persisted for a Serve.
// Neither omits its field, so an empty split still encodes as one.
type selectWire struct {
	Select int `json:"select"`
}

type splitWire struct {
	Split []int `json:"split"`
}

// MarshalJSON implements json.Marshaler.
func (s Serve) MarshalJSON() ([]byte, error) {
	switch st := s.Strategy.(type) {
	case Select:
		return json.Marshal(selectWire{Select: st.Index})
	case Split:
		weights := st.Weights
		if weights == nil {
			weights = []int{}
		}
		return json.Marshal(splitWire{Split: weights})
	case nil:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown serve strategy %T", st)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
// Exactly one of select/split must be present; null leaves s unset.
func (s *Serve) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Serve{}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	selRaw, hasSelect := raw["select"]
	splitRaw, hasSplit := raw["split"]

	switch {
	case hasSelect && hasSplit:
		return ErrAmbiguousServe
	case hasSelect:
		var idx int
		if err := json.Unmarshal(selRaw, &idx); err != nil {
			return fmt.Errorf("serve.select: %w", err)
		}
		*s = SelectServe(idx)
	case hasSplit:
		var weights []int
		if err := json.Unmarshal(splitRaw, &weights); err != nil {
			return fmt.Errorf("serve.split: %w", err)
		}
		if weights == nil {
			weights = []int{}
		}
		*s = Serve{Strategy: Split{Weights: weights}}
	default:
		return ErrEmptyServe
	}
	return nil
}
