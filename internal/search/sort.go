package search

import "sort"

// SortResults sorts results by score (descending), then by corpus position
// (ascending).
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].Position < results[j].Position
		}
		return results[i].Score > results[j].Score
	})
}

func truncate(results []Result, limit int) []Result {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
