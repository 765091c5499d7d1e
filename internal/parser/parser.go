// Package parser turns raw completion text into a structured question or
// final-analysis outcome. The markup it matches on is defined in the
// markup package and shared with the prompt builder; everything optional
// degrades gracefully, and only structurally unusable text fails.
package parser

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/snsmsm/psyche-scan/internal/domain"
	"github.com/snsmsm/psyche-scan/internal/markup"
)

var (
	thinkRe    = regexp.MustCompile(`(?is)^\s*<think>(.*?)</think>`)
	questionRe = regexp.MustCompile(`(?is)<question\s+iteration="(\d+)"\s*>(.*?)</question>`)

	// The options section runs from its heading to the next recognized
	// section marker or end of text.
	optionsSectionRe = regexp.MustCompile(`(?is)##\s*Metaphorical\s*Options\s*:(.*?)(?:🔸\s*\*\*Debug Reasoning\*\*|<!--|<final_analysis>|$)`)
	optionLineRe     = regexp.MustCompile(`^\s*\d+\.\s*(.*)$`)

	debugSectionRe  = regexp.MustCompile(`(?is)🔸\s*\*\*Debug Reasoning\*\*\s*:\s*(.*?)(?:<final_analysis>|$)`)
	finalAnalysisRe = regexp.MustCompile(`(?is)<final_analysis>(.*?)</final_analysis>`)

	alignmentRe = regexp.MustCompile(`(?i)ALIGNMENT SCORE:\s*\[?\s*(\d+(?:\.\d+)?)\s*%?\s*\]?`)
	trustRe     = regexp.MustCompile(`(?i)TRUST_LEVEL:\s*\[?\s*(\d+(?:\.\d+)?)\s*%?\s*\]?`)
	tensionRe   = regexp.MustCompile(`(?i)TENSION_PROFILE:\s*\[?([^\]` + "\n" + `]+)\]?`)
)

type questionPart struct {
	iteration    int
	question     string
	options      []string
	debugContent string
	params       domain.PsycheParameters
}

// Parse extracts a structured outcome from completion text.
// expectedIteration is the 1-based number of the question the caller asked
// for; a mismatching iteration inside the text is trusted but surfaced as
// a warning. Returns a domain.Error with CodeParsingFailure when neither a
// usable question nor a final analysis can be recovered.
func Parse(completion string, expectedIteration int) (*domain.Outcome, error) {
	content := completion
	if m := thinkRe.FindStringSubmatch(completion); m != nil {
		slog.Debug("Stripped leading reasoning block", "reasoning_len", len(m[1]))
		content = completion[len(m[0]):]
	}

	qPart, qErr := parseQuestionContent(content, expectedIteration)
	analysis := ParseFinalAnalysis(content)

	switch {
	case qPart == nil && qErr == nil && analysis == nil:
		return nil, domain.NewError(domain.CodeParsingFailure,
			"no valid question or final analysis found in completion")
	case qErr != nil && analysis == nil:
		return nil, qErr
	case qPart == nil && analysis != nil && expectedIteration < domain.MaxQuestions:
		if qErr != nil {
			return nil, qErr
		}
		return nil, domain.NewError(domain.CodeParsingFailure,
			"only a final analysis found before the terminal iteration")
	}

	out := &domain.Outcome{FinalAnalysis: analysis}
	if qPart != nil {
		out.Iteration = qPart.iteration
		out.Question = qPart.question
		out.Options = qPart.options
		out.DebugContent = qPart.debugContent
		out.PsycheParameters = qPart.params
		if analysis == nil && expectedIteration == domain.MaxQuestions {
			slog.Warn("Terminal question arrived without a bundled final analysis",
				"iteration", qPart.iteration)
		}
	}
	if len(out.Options) > 0 && len(out.Images) == 0 {
		out.Images = GenerateImages(out.Options)
	}
	return out, nil
}

// parseQuestionContent locates the question tag, the seven-option list,
// and the debug section. A missing question tag returns (nil, nil); a
// question with the wrong option count returns an error so the caller can
// decide whether an analysis part still salvages the text.
func parseQuestionContent(text string, expectedIteration int) (*questionPart, error) {
	qm := questionRe.FindStringSubmatch(text)
	if qm == nil {
		slog.Debug("No question tag found in completion")
		return nil, nil
	}

	iteration, err := strconv.Atoi(qm[1])
	if err != nil {
		slog.Warn("Question tag carries a non-numeric iteration", "raw", qm[1])
		return nil, nil
	}
	if iteration != expectedIteration {
		slog.Warn("Iteration mismatch between request and completion",
			"expected", expectedIteration, "parsed", iteration)
	}

	question := strings.TrimSpace(qm[2])
	if question == "" {
		slog.Debug("Question tag found but empty")
		return nil, nil
	}

	om := optionsSectionRe.FindStringSubmatch(text)
	if om == nil {
		slog.Warn("Question found without an options section", "iteration", iteration)
		return nil, domain.NewError(domain.CodeParsingFailure,
			"question found but the options section is missing")
	}

	var options []string
	for _, line := range strings.Split(om[1], "\n") {
		lm := optionLineRe.FindStringSubmatch(line)
		if lm == nil {
			continue
		}
		if opt := strings.TrimSpace(lm[1]); opt != "" {
			options = append(options, opt)
		}
	}
	if len(options) != markup.OptionCount {
		slog.Error("Option count mismatch", "found", len(options), "expected", markup.OptionCount)
		return nil, domain.NewError(domain.CodeParsingFailure,
			"expected "+strconv.Itoa(markup.OptionCount)+" options, found "+strconv.Itoa(len(options)))
	}

	var debugContent string
	if dm := debugSectionRe.FindStringSubmatch(text); dm != nil {
		debugContent = strings.TrimSpace(dm[1])
	}

	return &questionPart{
		iteration:    iteration,
		question:     question,
		options:      options,
		debugContent: debugContent,
		params:       ExtractPsycheParameters(debugContent),
	}, nil
}

// ParseFinalAnalysis extracts the final-analysis block and its optional
// labelled metrics. Returns nil when the block is absent.
func ParseFinalAnalysis(text string) *domain.FinalAnalysis {
	m := finalAnalysisRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	body := strings.TrimSpace(m[1])
	if body == "" {
		return nil
	}

	analysis := &domain.FinalAnalysis{HTML: body}
	if am := alignmentRe.FindStringSubmatch(body); am != nil {
		if v, err := strconv.ParseFloat(am[1], 64); err == nil {
			analysis.Metrics.AlignmentScore = &v
		}
	}
	if tm := trustRe.FindStringSubmatch(body); tm != nil {
		if v, err := strconv.ParseFloat(tm[1], 64); err == nil {
			analysis.Metrics.TrustLevel = &v
		}
	}
	if tm := tensionRe.FindStringSubmatch(body); tm != nil {
		for _, tok := range strings.Split(strings.ReplaceAll(tm[1], `"`, ""), ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				analysis.Metrics.TensionProfile = append(analysis.Metrics.TensionProfile, tok)
			}
		}
	}
	slog.Debug("Parsed final analysis",
		"html_len", len(body),
		"has_alignment", analysis.Metrics.AlignmentScore != nil,
		"has_trust", analysis.Metrics.TrustLevel != nil)
	return analysis
}
