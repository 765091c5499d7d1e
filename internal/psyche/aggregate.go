// Package psyche folds per-choice parameter attributions into the running
// per-session psyche profile.
package psyche

import (
	"github.com/snsmsm/psyche-scan/internal/domain"
)

// Aggregate folds incoming per-choice parameters into the existing session
// vector. Numeric values join a running mean weighted by how many history
// entries carry the key (the entry being folded included), then clamp to
// [0,1]; non-numeric values overwrite; blockage phrases union without
// duplicates. Neither input map is mutated.
func Aggregate(existing, incoming domain.ParameterMap, history []domain.HistoryEntry) domain.ParameterMap {
	result := existing.Clone()
	if result == nil {
		result = make(domain.ParameterMap, len(incoming))
	}

	for key, val := range incoming {
		if key == domain.BlockagesKey {
			continue
		}
		num, ok := val.AsNumber()
		if !ok {
			result[key] = val
			continue
		}

		count := 0
		for _, h := range history {
			if _, carries := h.Parameters[key]; carries {
				count++
			}
		}
		// A key can arrive without any history entry carrying it yet;
		// treat that as the first contribution rather than dividing by
		// zero.
		if count < 1 {
			count = 1
		}

		prev, _ := result[key].AsNumber()
		mean := (prev*float64(count-1) + num) / float64(count)
		result[key] = domain.Number(clamp01(mean))
	}

	if incomingBlockages, ok := incoming[domain.BlockagesKey].AsPhrases(); ok {
		existingBlockages, _ := result[domain.BlockagesKey].AsPhrases()
		result[domain.BlockagesKey] = domain.Phrases(union(existingBlockages, incomingBlockages))
	}

	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, item := range list {
			if item == "" || seen[item] {
				continue
			}
			seen[item] = true
			merged = append(merged, item)
		}
	}
	return merged
}
