package parser

import (
	"encoding/json"
	"testing"
)

func TestQuoteBareKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, in, want string
	}{
		{"bare key", `{risk: 0.8}`, `{"risk": 0.8}`},
		{"single-quoted key", `{'risk': 0.8}`, `{"risk": 0.8}`},
		{"already quoted", `{"risk": 0.8}`, `{"risk": 0.8}`},
		{"multiple keys", `{risk: 0.8, urgency: 0.2}`, `{"risk": 0.8, "urgency": 0.2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteBareKeys(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeSingleQuotes(t *testing.T) {
	t.Parallel()

	got := NormalizeSingleQuotes(`{"mood": 'volatile'}`)
	want := `{"mood": "volatile"}`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDropTrailingCommas(t *testing.T) {
	t.Parallel()

	got := DropTrailingCommas(`{"a": 1, "b": 2,}`)
	want := `{"a": 1, "b": 2}`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripLineComments(t *testing.T) {
	t.Parallel()

	got := StripLineComments(`{"a": 1} // model aside`)
	want := `{"a": 1}`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRepairProducesValidJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"all rules together", `{risk_tolerance: 0.8, mood: 'tense', urgency: 0.3,} // aside`},
		{"clean input untouched", `{"risk_tolerance": 0.8}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired := Repair(tt.in)
			var out map[string]any
			if err := json.Unmarshal([]byte(repaired), &out); err != nil {
				t.Errorf("repaired text is not valid JSON: %q: %v", repaired, err)
			}
		})
	}
}
