// Package markup defines the text-markup contract shared by the prompt
// builder and the response parser. The completion provider is instructed
// to emit exactly these markers, and the parser matches on exactly these
// markers; both sides import this package so the contract cannot drift.
package markup

// Section markers expected in a completion.
const (
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"

	// QuestionTag wraps the question text and carries the 1-based
	// iteration attribute, e.g. <question iteration="3">...</question>.
	QuestionTag = "question"

	OptionsHeading = "## Metaphorical Options:"
	DebugHeading   = "🔸 **Debug Reasoning**:"

	// Arrow separates a metaphor label from its parameter object in the
	// debug section, e.g. `1. "volcano" → {"risk_tolerance": 0.8}`.
	Arrow = "→"

	FinalAnalysisOpen  = "<final_analysis>"
	FinalAnalysisClose = "</final_analysis>"
)

// Metric labels matched case-insensitively inside the final analysis.
const (
	AlignmentScoreLabel = "ALIGNMENT SCORE"
	TrustLevelLabel     = "TRUST_LEVEL"
	TensionProfileLabel = "TENSION_PROFILE"
)

// OptionCount is the number of metaphorical options every question must
// offer.
const OptionCount = 7

// CanonicalExample is a minimal well-formed completion exercising every
// marker above. The parser package re-parses it in a sanity test so a
// change to either side of the contract fails loudly at test time.
const CanonicalExample = ThinkOpen + `
The subject avoided all liquidity metaphors last round.
` + ThinkClose + `
<question iteration="3">When your reserves run low, what does the empty vault feel like?</question>

` + OptionsHeading + `
1. A dry riverbed waiting for rain
2. A volcano gathering pressure
3. An empty granary before winter
4. A ship becalmed at sea
5. A bank of fog hiding the road
6. A clockwork spring wound too tight
7. A garden gone to seed

` + DebugHeading + `
1. "dry riverbed" ` + Arrow + ` {"patience": 0.8, "risk_tolerance": 0.2}
2. "volcano" ` + Arrow + ` {"risk_tolerance": 0.9, "urgency": 0.7}
3. "empty granary" ` + Arrow + ` {"security_focus": 0.9}
4. "becalmed ship" ` + Arrow + ` {"agency": 0.1}
5. "fog bank" ` + Arrow + ` {"clarity": 0.2}
6. "clockwork spring" ` + Arrow + ` {"control": 0.9, "tension": 0.8}
7. "overgrown garden" ` + Arrow + ` {"neglect": 0.7}
Blockages: fear of scarcity, distrust of institutions
`
