package parser

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/snsmsm/psyche-scan/internal/domain"
	"github.com/snsmsm/psyche-scan/internal/markup"
)

var (
	// `1. "volcano" → {"risk_tolerance": 0.8}`. List number and quotes
	// are optional; the object must be brace-delimited and end the line.
	mappingLineRe = regexp.MustCompile(`^\s*(?:\d+\.\s*)?(.+?)\s*` + markup.Arrow + `\s*(\{.*\})\s*$`)

	blockageLineRe = regexp.MustCompile(`(?i)blockages?\s*:?\s*(.*)`)

	edgeQuotesRe = regexp.MustCompile(`^['"]|['"]$`)
)

// ExtractPsycheParameters scans the debug-reasoning body line by line and
// recovers per-metaphor parameter objects plus an optional deduplicated
// blockage phrase set. Unparseable lines are skipped with a warning;
// recovering fewer than the expected seven mappings is never an error.
func ExtractPsycheParameters(debugText string) domain.PsycheParameters {
	var out domain.PsycheParameters
	if strings.TrimSpace(debugText) == "" {
		return out
	}

	mappings := make(map[string]domain.ParameterMap)
	var blockages []string
	seen := make(map[string]bool)
	matched := 0

	for _, line := range strings.Split(debugText, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := mappingLineRe.FindStringSubmatch(line); m != nil {
			matched++
			metaphor := strings.ToLower(strings.TrimSpace(edgeQuotesRe.ReplaceAllString(strings.TrimSpace(m[1]), "")))
			repaired := Repair(m[2])
			if repaired == "{}" {
				slog.Warn("Empty parameter object in debug section", "metaphor", metaphor)
				continue
			}

			var params domain.ParameterMap
			if err := json.Unmarshal([]byte(repaired), &params); err != nil {
				slog.Warn("Parameter object failed strict parse after repair",
					"metaphor", metaphor, "repaired", repaired, "error", err)
				continue
			}
			if _, dup := mappings[metaphor]; dup {
				slog.Warn("Overwriting parameters for duplicate metaphor key", "metaphor", metaphor)
			}
			mappings[metaphor] = params
			continue
		}

		if m := blockageLineRe.FindStringSubmatch(line); m != nil && strings.TrimSpace(m[1]) != "" {
			for _, item := range strings.Split(m[1], ",") {
				phrase := strings.TrimSpace(edgeQuotesRe.ReplaceAllString(strings.TrimSpace(item), ""))
				if phrase == "" || seen[phrase] {
					continue
				}
				seen[phrase] = true
				blockages = append(blockages, phrase)
			}
		}
	}

	if matched == 0 {
		slog.Warn("No metaphor mapping lines found in debug section")
	} else if len(mappings) < markup.OptionCount {
		slog.Warn("Fewer parameter mappings parsed than expected",
			"parsed", len(mappings), "matched_lines", matched, "expected", markup.OptionCount)
	}

	if len(mappings) > 0 {
		out.Mappings = mappings
	}
	out.Blockages = blockages
	return out
}
