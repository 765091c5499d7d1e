package domain

import (
	"encoding/json"
	"fmt"
)

// Outcome is the structured result of one pipeline run. Question and
// FinalAnalysis are both optional but never both absent: the tenth
// question may arrive bundled with the closing analysis, and a pure
// analysis request produces only FinalAnalysis.
type Outcome struct {
	Iteration        int              `json:"iteration,omitempty"`
	Question         string           `json:"question,omitempty"`
	Options          []string         `json:"options,omitempty"`
	Images           []string         `json:"images,omitempty"`
	DebugContent     string           `json:"debug_content,omitempty"`
	PsycheParameters PsycheParameters `json:"psyche_parameters,omitzero"`
	// SessionParameters is the running per-session parameter vector with
	// the latest answered round folded in, for the client to adopt.
	SessionParameters ParameterMap   `json:"session_parameters,omitempty"`
	FinalAnalysis     *FinalAnalysis `json:"final_analysis,omitempty"`
}

// HasQuestion reports whether the outcome carries a question part.
func (o *Outcome) HasQuestion() bool {
	return o != nil && o.Question != ""
}

// PsycheParameters holds the per-metaphor parameter objects recovered from
// a completion's debug section, plus the deduplicated blockage phrases. On
// the wire both live in one object: metaphor keys map to parameter
// objects, the reserved BlockagesKey maps to a flat string array.
type PsycheParameters struct {
	Mappings  map[string]ParameterMap
	Blockages []string
}

// Empty reports whether nothing was recovered.
func (p PsycheParameters) Empty() bool {
	return len(p.Mappings) == 0 && len(p.Blockages) == 0
}

// ForMetaphor returns the parameter object attributed to a metaphor,
// looked up by its lowercased label.
func (p PsycheParameters) ForMetaphor(metaphor string) ParameterMap {
	return p.Mappings[metaphor]
}

// MarshalJSON flattens mappings and blockages into a single object.
func (p PsycheParameters) MarshalJSON() ([]byte, error) {
	if p.Empty() {
		return []byte("{}"), nil
	}
	flat := make(map[string]any, len(p.Mappings)+1)
	for k, v := range p.Mappings {
		flat[k] = v
	}
	if len(p.Blockages) > 0 {
		flat[BlockagesKey] = p.Blockages
	}
	return json.Marshal(flat)
}

// UnmarshalJSON splits the flat object back into mappings and blockages.
func (p *PsycheParameters) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("psyche parameters must be an object: %w", err)
	}
	p.Mappings = nil
	p.Blockages = nil
	for k, v := range raw {
		if k == BlockagesKey {
			if err := json.Unmarshal(v, &p.Blockages); err != nil {
				return fmt.Errorf("decode %s: %w", BlockagesKey, err)
			}
			continue
		}
		var pm ParameterMap
		if err := json.Unmarshal(v, &pm); err != nil {
			return fmt.Errorf("decode parameters for %q: %w", k, err)
		}
		if p.Mappings == nil {
			p.Mappings = make(map[string]ParameterMap)
		}
		p.Mappings[k] = pm
	}
	return nil
}

// FinalAnalysis is the closing narrative profile rendered by the client.
type FinalAnalysis struct {
	HTML    string          `json:"html"`
	Metrics AnalysisMetrics `json:"metrics"`
}

// AnalysisMetrics are optional labelled values extracted from the analysis
// text. Absent metrics stay nil rather than zero so the client can tell
// "not reported" from a genuine 0.
type AnalysisMetrics struct {
	AlignmentScore *float64 `json:"alignment_score"`
	TrustLevel     *float64 `json:"trust_level"`
	TensionProfile []string `json:"tension_profile"`
}
