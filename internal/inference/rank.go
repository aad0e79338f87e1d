package inference

import (
	"fmt"
	"sort"
)

// Rank keeps the scores at or above the threshold, orders them from highest to
// lowest and truncates the list to MaxResults. Ties keep label order.
func Rank(scores []float32, labels []string, opts Options) []Category {
	ranked := make([]Category, 0, len(scores))
	for i, score := range scores {
		if score < opts.ScoreThreshold {
			continue
		}
		ranked = append(ranked, Category{Index: i, Label: labelAt(labels, i), Score: score})
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})
	if opts.MaxResults > 0 && len(ranked) > opts.MaxResults {
		ranked = ranked[:opts.MaxResults]
	}
	return ranked
}

func labelAt(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return fmt.Sprintf("class_%d", i)
}
