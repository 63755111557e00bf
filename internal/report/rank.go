package report

import (
	"sort"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// Rank orders records by relevance score, highest first. Unrated records sink
// below every rated one and keep their relative order, as do rated records
// with equal scores.
func Rank(records []types.PaperRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Rated != records[j].Rated {
			return records[i].Rated
		}
		if !records[i].Rated {
			return false
		}
		return records[i].Score > records[j].Score
	})
}
