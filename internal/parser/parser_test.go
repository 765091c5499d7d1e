package parser

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/snsmsm/psyche-scan/internal/domain"
	"github.com/snsmsm/psyche-scan/internal/markup"
)

func buildCompletion(iteration, optionCount int, withDebug, withAnalysis bool) string {
	var b strings.Builder
	b.WriteString("<think>\nConsidering the subject's avoidances.\n</think>\n")
	fmt.Fprintf(&b, "<question iteration=%q>What shape does your debt take at night?</question>\n\n", fmt.Sprint(iteration))
	b.WriteString(markup.OptionsHeading + "\n")
	for i := 1; i <= optionCount; i++ {
		fmt.Fprintf(&b, "%d. Metaphor number %d\n", i, i)
	}
	if withDebug {
		b.WriteString("\n" + markup.DebugHeading + "\n")
		for i := 1; i <= optionCount; i++ {
			fmt.Fprintf(&b, "%d. \"metaphor %d\" %s {\"risk_tolerance\": 0.%d}\n", i, i, markup.Arrow, i)
		}
	}
	if withAnalysis {
		b.WriteString("\n<final_analysis><div class=\"profile-box\">Profile.</div>\n")
		b.WriteString("ALIGNMENT SCORE: [88%]\nTRUST_LEVEL: 72%\nTENSION_PROFILE: security vs growth, impulse vs control\n")
		b.WriteString("</final_analysis>\n")
	}
	return b.String()
}

func TestParseQuestionRoundTrip(t *testing.T) {
	t.Parallel()

	out, err := Parse(buildCompletion(3, 7, true, false), 3)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if out.Iteration != 3 {
		t.Errorf("expected iteration 3, got %d", out.Iteration)
	}
	if len(out.Options) != 7 {
		t.Fatalf("expected 7 options, got %d", len(out.Options))
	}
	for i, opt := range out.Options {
		want := fmt.Sprintf("Metaphor number %d", i+1)
		if opt != want {
			t.Errorf("option %d: expected %q, got %q", i, want, opt)
		}
	}
	if len(out.Images) != 7 {
		t.Errorf("expected 7 images, got %d", len(out.Images))
	}
	if len(out.PsycheParameters.Mappings) != 7 {
		t.Errorf("expected 7 parameter mappings, got %d", len(out.PsycheParameters.Mappings))
	}
	if out.PsycheParameters.Blockages != nil {
		t.Errorf("expected no blockages, got %v", out.PsycheParameters.Blockages)
	}
	if out.FinalAnalysis != nil {
		t.Error("expected no final analysis")
	}
}

func TestParseWrongOptionCountFails(t *testing.T) {
	t.Parallel()

	out, err := Parse(buildCompletion(3, 6, true, false), 3)
	if err == nil {
		t.Fatalf("expected parsing failure, got outcome %+v", out)
	}
	var de *domain.Error
	if !errors.As(err, &de) || de.Code != domain.CodeParsingFailure {
		t.Errorf("expected %s, got %v", domain.CodeParsingFailure, err)
	}
}

func TestParseIterationMismatchTrustsParsedValue(t *testing.T) {
	t.Parallel()

	out, err := Parse(buildCompletion(5, 7, false, false), 4)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if out.Iteration != 5 {
		t.Errorf("expected parsed iteration 5, got %d", out.Iteration)
	}
}

func TestParseNeitherQuestionNorAnalysisFails(t *testing.T) {
	t.Parallel()

	_, err := Parse("The machine hums quietly but emits no structure.", 2)
	var de *domain.Error
	if !errors.As(err, &de) || de.Code != domain.CodeParsingFailure {
		t.Fatalf("expected %s, got %v", domain.CodeParsingFailure, err)
	}
}

func TestParseAnalysisOnlyBeforeTerminalFails(t *testing.T) {
	t.Parallel()

	text := "<final_analysis><div>too early</div></final_analysis>"
	_, err := Parse(text, 4)
	if err == nil {
		t.Fatal("expected failure for early analysis")
	}
}

func TestParseAnalysisOnlyAtTerminalSucceeds(t *testing.T) {
	t.Parallel()

	text := "<final_analysis><div>the ledger closes</div>\nTRUST_LEVEL: 72%\n</final_analysis>"
	out, err := Parse(text, domain.MaxQuestions)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if out.FinalAnalysis == nil {
		t.Fatal("expected final analysis")
	}
	if out.FinalAnalysis.Metrics.TrustLevel == nil || *out.FinalAnalysis.Metrics.TrustLevel != 72 {
		t.Errorf("expected trust level 72, got %v", out.FinalAnalysis.Metrics.TrustLevel)
	}
}

func TestParseTerminalQuestionWithoutAnalysisAccepted(t *testing.T) {
	t.Parallel()

	out, err := Parse(buildCompletion(10, 7, true, false), domain.MaxQuestions)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !out.HasQuestion() {
		t.Error("expected question part")
	}
	if out.FinalAnalysis != nil {
		t.Error("expected no analysis")
	}
}

func TestParseBundledQuestionAndAnalysis(t *testing.T) {
	t.Parallel()

	out, err := Parse(buildCompletion(10, 7, true, true), domain.MaxQuestions)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !out.HasQuestion() {
		t.Error("expected question part")
	}
	if out.FinalAnalysis == nil {
		t.Fatal("expected analysis part")
	}
	m := out.FinalAnalysis.Metrics
	if m.AlignmentScore == nil || *m.AlignmentScore != 88 {
		t.Errorf("expected alignment 88, got %v", m.AlignmentScore)
	}
	if len(m.TensionProfile) != 2 {
		t.Errorf("expected 2 tension tokens, got %v", m.TensionProfile)
	}
}

func TestParseCanonicalExample(t *testing.T) {
	t.Parallel()

	// The markup package's example is the contract between the prompt
	// builder and this parser; it must always parse.
	out, err := Parse(markup.CanonicalExample, 3)
	if err != nil {
		t.Fatalf("canonical example failed to parse: %v", err)
	}
	if out.Iteration != 3 || len(out.Options) != markup.OptionCount {
		t.Errorf("unexpected outcome: iteration=%d options=%d", out.Iteration, len(out.Options))
	}
	if len(out.PsycheParameters.Mappings) != markup.OptionCount {
		t.Errorf("expected %d mappings, got %d", markup.OptionCount, len(out.PsycheParameters.Mappings))
	}
	if len(out.PsycheParameters.Blockages) != 2 {
		t.Errorf("expected 2 blockages, got %v", out.PsycheParameters.Blockages)
	}
}

func TestParseFinalAnalysisMetricTolerance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, fa *domain.FinalAnalysis)
	}{
		{
			name: "bracketed percent values",
			body: "ALIGNMENT SCORE: [91.5%]\ntrust_level: [40]",
			check: func(t *testing.T, fa *domain.FinalAnalysis) {
				if fa.Metrics.AlignmentScore == nil || *fa.Metrics.AlignmentScore != 91.5 {
					t.Errorf("alignment = %v", fa.Metrics.AlignmentScore)
				}
				if fa.Metrics.TrustLevel == nil || *fa.Metrics.TrustLevel != 40 {
					t.Errorf("trust = %v", fa.Metrics.TrustLevel)
				}
			},
		},
		{
			name: "missing metrics stay nil",
			body: "<div>no numbers here</div>",
			check: func(t *testing.T, fa *domain.FinalAnalysis) {
				if fa.Metrics.AlignmentScore != nil || fa.Metrics.TrustLevel != nil {
					t.Error("expected nil metrics")
				}
			},
		},
		{
			name: "quoted tension tokens",
			body: `TENSION_PROFILE: ["safety vs thrill", "hoard vs spend"]`,
			check: func(t *testing.T, fa *domain.FinalAnalysis) {
				want := []string{"safety vs thrill", "hoard vs spend"}
				if len(fa.Metrics.TensionProfile) != len(want) {
					t.Fatalf("tension = %v", fa.Metrics.TensionProfile)
				}
				for i := range want {
					if fa.Metrics.TensionProfile[i] != want[i] {
						t.Errorf("token %d: got %q, want %q", i, fa.Metrics.TensionProfile[i], want[i])
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := ParseFinalAnalysis("<final_analysis>" + tt.body + "</final_analysis>")
			if fa == nil {
				t.Fatal("expected analysis")
			}
			tt.check(t, fa)
		})
	}
}
