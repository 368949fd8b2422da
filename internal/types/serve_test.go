package types

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestServeJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		serve Serve
		want  string
	}{
		{"select", SelectServe(2), `{"select":2}`},
		{"select zero", SelectServe(0), `{"select":0}`},
		{"split", SplitServe(2500, 7500), `{"split":[2500,7500]}`},
		{"empty split", SplitServe(), `{"split":[]}`},
		{"nil split", Serve{Strategy: Split{}}, `{"split":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.serve)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal() = %s, want %s", data, tt.want)
			}

			var back Serve
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", data, err)
			}
			again, err := json.Marshal(back)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(again) != tt.want {
				t.Errorf("re-Marshal() = %s, want %s", again, tt.want)
			}
		})
	}
}

func TestServeUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    Serve
		wantErr error
	}{
		{`{"split":[]}`, Serve{Strategy: Split{Weights: []int{}}}, nil},
		{`{"select":1}`, SelectServe(1), nil},
		{`null`, Serve{}, nil},
		{`{}`, Serve{}, ErrEmptyServe},
		{`{"select":0,"split":[10000]}`, Serve{}, ErrAmbiguousServe},
	}

	for _, tt := range tests {
		var got Serve
		err := json.Unmarshal([]byte(tt.in), &got)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Unmarshal(%s) error = %v, want %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Unmarshal(%s) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
