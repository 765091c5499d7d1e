// Package domain contains core domain types for the psyche scan backend.
package domain

import (
	"encoding/json"
	"fmt"
)

// MaxQuestions is the number of questions in a complete scan session.
const MaxQuestions = 10

// BlockagesKey is the reserved parameter key holding free-text blockage
// phrases instead of a numeric score.
const BlockagesKey = "_blockages"

// SessionState is the client-owned quiz state, passed by value with every
// submission. Iteration counts completed questions and must equal
// len(History).
type SessionState struct {
	Iteration  int            `json:"iteration"`
	History    []HistoryEntry `json:"history"`
	Parameters ParameterMap   `json:"parameters,omitempty"`
}

// Complete reports whether the session has answered all questions.
func (s *SessionState) Complete() bool {
	return s.Iteration >= MaxQuestions
}

// Clone returns a deep copy of the session state. Job records snapshot the
// submitted state and must never alias client-visible data.
func (s *SessionState) Clone() *SessionState {
	cp := &SessionState{
		Iteration:  s.Iteration,
		Parameters: s.Parameters.Clone(),
	}
	if s.History != nil {
		cp.History = make([]HistoryEntry, len(s.History))
		for i, h := range s.History {
			cp.History[i] = h.clone()
		}
	}
	return cp
}

// HistoryEntry records one answered question: what was asked, which
// metaphor the user chose, which they avoided, and the per-choice psyche
// parameters attributed to the chosen option.
type HistoryEntry struct {
	Iteration        int          `json:"iteration"`
	Question         string       `json:"question"`
	Metaphor         string       `json:"metaphor"`
	AvoidedMetaphors []string     `json:"avoided_metaphors,omitempty"`
	Parameters       ParameterMap `json:"parameters,omitempty"`
}

func (h HistoryEntry) clone() HistoryEntry {
	cp := h
	if h.AvoidedMetaphors != nil {
		cp.AvoidedMetaphors = append([]string(nil), h.AvoidedMetaphors...)
	}
	cp.Parameters = h.Parameters.Clone()
	return cp
}

// ParameterMap maps parameter names to values. Keys are lowercase metaphor
// or trait names; the reserved BlockagesKey entry holds phrases.
type ParameterMap map[string]ParameterValue

// Clone returns a deep copy of the map.
func (m ParameterMap) Clone() ParameterMap {
	if m == nil {
		return nil
	}
	cp := make(ParameterMap, len(m))
	for k, v := range m {
		cp[k] = v.clone()
	}
	return cp
}

// ParameterValue is either a numeric score (typically clamped to [0,1]), a
// plain string, or a set of phrases (used by the BlockagesKey entry). The
// zero value marshals as JSON null.
type ParameterValue struct {
	num     *float64
	str     *string
	phrases []string
}

// Number creates a numeric parameter value.
func Number(v float64) ParameterValue {
	return ParameterValue{num: &v}
}

// Text creates a plain-string parameter value.
func Text(s string) ParameterValue {
	return ParameterValue{str: &s}
}

// Phrases creates a phrase-set parameter value.
func Phrases(items []string) ParameterValue {
	return ParameterValue{phrases: items}
}

// AsNumber returns the numeric score and whether the value is numeric.
func (v ParameterValue) AsNumber() (float64, bool) {
	if v.num == nil {
		return 0, false
	}
	return *v.num, true
}

// AsText returns the string payload and whether the value is a string.
func (v ParameterValue) AsText() (string, bool) {
	if v.str == nil {
		return "", false
	}
	return *v.str, true
}

// AsPhrases returns the phrase set and whether the value holds one.
func (v ParameterValue) AsPhrases() ([]string, bool) {
	if v.phrases == nil {
		return nil, false
	}
	return v.phrases, true
}

func (v ParameterValue) clone() ParameterValue {
	cp := v
	if v.num != nil {
		n := *v.num
		cp.num = &n
	}
	if v.str != nil {
		s := *v.str
		cp.str = &s
	}
	if v.phrases != nil {
		cp.phrases = append([]string(nil), v.phrases...)
	}
	return cp
}

// MarshalJSON emits the underlying number, string, or phrase array.
func (v ParameterValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.num != nil:
		return json.Marshal(*v.num)
	case v.str != nil:
		return json.Marshal(*v.str)
	case v.phrases != nil:
		return json.Marshal(v.phrases)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a number, a string, or an array of strings.
// Completion-derived parameter objects are loosely typed, so anything else
// is rejected rather than silently coerced.
func (v *ParameterValue) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		v.num, v.str, v.phrases = &num, nil, nil
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		v.str, v.num, v.phrases = &str, nil, nil
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		v.phrases, v.num, v.str = items, nil, nil
		return nil
	}
	return fmt.Errorf("parameter value must be a number, string, or string array: %s", data)
}
