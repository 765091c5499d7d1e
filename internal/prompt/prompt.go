// Package prompt builds the outbound completion requests. Builders are
// pure functions of session state; the section markers they instruct the
// model to emit come from the markup package, which the parser matches
// against on the way back.
package prompt

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/snsmsm/psyche-scan/internal/domain"
	"github.com/snsmsm/psyche-scan/internal/markup"
)

//go:embed system_prompt.txt
var systemPrompt string

// fallbackSystemPrompt keeps the service functional if the embedded
// template is ever emptied out.
const fallbackSystemPrompt = `You are a 1984-era financial therapist using metaphors. ` +
	`Conduct a 10-question adaptive ritual. Respond ONLY in the specified format: ` +
	markup.ThinkOpen + `...` + markup.ThinkClose + ` <question iteration="N">...</question> ` +
	markup.OptionsHeading + "\n1. ...\n7. ...\n" + markup.DebugHeading + ` ...`

// System returns the system prompt establishing the therapist persona and
// the exact output markup.
func System() string {
	if s := strings.TrimSpace(systemPrompt); s != "" {
		return s
	}
	return fallbackSystemPrompt
}

// Question builds the user prompt requesting the next question for the
// given session state. At the ninth answered question it additionally
// instructs the model to bundle the final analysis after question ten.
func Question(state *domain.SessionState) string {
	next := state.Iteration + 1

	var b strings.Builder
	fmt.Fprintf(&b, "Continue the financial psyche analysis ritual. This is question #%d of %d.\n", next, domain.MaxQuestions)
	b.WriteString("Base your response STRICTLY on the user's history and your internal reasoning.\n\n")
	writeHistory(&b, state.History)

	b.WriteString("Required Output Format:\n")
	fmt.Fprintf(&b, "1.  A %s block explaining your reasoning for the question and options.\n", markup.ThinkOpen)
	fmt.Fprintf(&b, "2.  A <question iteration=%q> tag containing the question text.\n", fmt.Sprint(next))
	fmt.Fprintf(&b, "3.  A %q section with exactly %d numbered options.\n", markup.OptionsHeading, markup.OptionCount)
	fmt.Fprintf(&b, "4.  A %q section detailing the psyche parameters mapped to each option "+
		`(e.g., "volcano" %s {"risk_tolerance": 0.8, "urgency": 0.7}). Include any identified 'blockages'.`+"\n",
		markup.DebugHeading, markup.Arrow)

	if state.Iteration == domain.MaxQuestions-1 {
		fmt.Fprintf(&b, "\nFINAL STEP: Generate the standard response block for Question %d first "+
			"(think, question, options, debug). IMMEDIATELY FOLLOWING that block, generate the "+
			"final analysis, wrapping it ONLY in %s tags and including the DEBUG LEDGER inside.\n",
			domain.MaxQuestions, markup.FinalAnalysisOpen)
	}

	b.WriteString("\nGenerate the response now.")
	return b.String()
}

// FinalAnalysis builds the user prompt requesting the closing profile for
// a completed session, including the aggregated parameter vector.
func FinalAnalysis(state *domain.SessionState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The %d-question SNS-MSM ritual is complete. Analyze the user's financial psyche "+
		"based on the history and aggregated parameters below.\n\n", domain.MaxQuestions)

	b.WriteString("Session History:\n")
	for _, item := range state.History {
		if item.Iteration == 0 || item.Metaphor == "" {
			continue
		}
		fmt.Fprintf(&b, "Q%d: Chose %q", item.Iteration, item.Metaphor)
		if summary := summarizeParameters(item.Parameters); summary != "" {
			fmt.Fprintf(&b, " (%s)", summary)
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nAggregated Psyche Parameters (Estimate):\n")
	if len(state.Parameters) == 0 {
		b.WriteString("- Parameters could not be aggregated.\n")
	} else {
		for _, key := range sortedKeys(state.Parameters) {
			fmt.Fprintf(&b, "- %s: %s\n", key, formatValue(state.Parameters[key]))
		}
	}

	b.WriteString("\nRequired Output Format:\n")
	fmt.Fprintf(&b, "Your response MUST be wrapped ONLY in %s tags. Inside these tags, create an HTML "+
		"structure suitable for display and sharing, using the provided CSS classes.\n\n",
		markup.FinalAnalysisOpen)
	b.WriteString(analysisTemplate)
	return b.String()
}

func writeHistory(b *strings.Builder, history []domain.HistoryEntry) {
	if len(history) == 0 {
		return
	}
	b.WriteString("User's session history so far:\n\n")
	for _, item := range history {
		if item.Iteration == 0 || item.Question == "" || item.Metaphor == "" {
			continue
		}
		fmt.Fprintf(b, "Q%d: %s\n", item.Iteration, item.Question)
		fmt.Fprintf(b, "User chose: %q\n", item.Metaphor)
		if len(item.Parameters) > 0 {
			if raw, err := json.Marshal(item.Parameters); err == nil {
				fmt.Fprintf(b, "Implied Parameters: %s\n", raw)
			}
		}
		if len(item.AvoidedMetaphors) > 0 {
			fmt.Fprintf(b, "Avoided: %s\n", strings.Join(item.AvoidedMetaphors, ", "))
		}
		b.WriteByte('\n')
	}
}

func summarizeParameters(params domain.ParameterMap) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for _, key := range sortedKeys(params) {
		parts = append(parts, key+":"+formatValue(params[key]))
	}
	return strings.Join(parts, ", ")
}

func formatValue(v domain.ParameterValue) string {
	if n, ok := v.AsNumber(); ok {
		return fmt.Sprintf("%.2f", n)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

func sortedKeys(m domain.ParameterMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic prompt text keeps request logging diffable.
	sort.Strings(keys)
	return keys
}

const analysisTemplate = markup.FinalAnalysisOpen + `
<div class="profile-box">
  <div class="profile-header">
    <span class="profile-title">Financial Psyche Scan: SNS-MSM Profile</span>
    <span class="profile-session-id">Session ID: [Generate a short, thematic ID like '84-CRYSTAL-XYZ']</span>
  </div>

  <div class="profile-archetype">
    <h3>Dominant Archetype:</h3>
    <p>[Name a core archetype based on the overall pattern, e.g., "The Calculated Risk Navigator". Use evocative 1984-therapist language.]</p>
  </div>

  <div class="profile-parameters">
    <h3>Key Psyche Parameters:</h3>
    <div class="param-grid">
      <div class="param-item">
        <span class="param-label">Risk Tolerance:</span>
        <span class="param-value">[Map aggregated risk_tolerance (0-1) to a label: Very Low, Low, Measured, Calculated, High, Volatile]</span>
      </div>
      <div class="param-item">
        <span class="param-label">Planning Horizon:</span>
        <span class="param-value">[Map aggregated planning_horizon (0-1) to label: Immediate, Short-Term, Mid-Term, Long-Term, Generational]</span>
      </div>
      <div class="param-item">
        <span class="param-label">Security Focus:</span>
        <span class="param-value">[Map aggregated security_focus (0-1) to label: Low, Seeking, Balanced, High, Absolute]</span>
      </div>
      <div class="param-item">
        <span class="param-label">Trust Level (Est.):</span>
        <span class="param-value">[Estimate % based on choices related to systems/collaboration]</span>
      </div>
    </div>
  </div>

  <div class="profile-duality">
    <h3>Core Tension / Duality:</h3>
    <p class="duality-text">"[The primary conflict, e.g., Security vs. Opportunity]"</p>
  </div>

  <div class="profile-shadow">
    <h3>Potential Shadow Aspect:</h3>
    <p class="shadow-text">[A blind spot or hidden tendency suggested by consistent avoidances. Frame it gently in the therapist persona.]</p>
  </div>

  <div class="profile-summary">
    <h3>Analyst's Observation:</h3>
    <p>[A 2-3 sentence narrative summary in the 1984 therapist voice.]</p>
  </div>

  ` + markup.AlignmentScoreLabel + `: [0-100]%
  ` + markup.TrustLevelLabel + `: [0-100]%
  ` + markup.TensionProfileLabel + `: [comma-separated tension pairs]
` + markup.FinalAnalysisClose
