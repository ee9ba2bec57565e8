package composite

import (
	"slices"
	"time"
)

// Compose merges the entries of one purpose group. At every instant the entry
// of the highest stack level wins, ties going to the highest profile id.
// Instants no entry covers are left out.
func Compose(entries []PeriodEntry) []PeriodEntry {
	if len(entries) == 0 {
		return nil
	}
	bounds := make([]time.Time, 0, 2*len(entries))
	for _, e := range entries {
		bounds = append(bounds, e.Start, e.End)
	}
	slices.SortFunc(bounds, time.Time.Compare)
	bounds = slices.CompactFunc(bounds, time.Time.Equal)

	var out []PeriodEntry
	lastWinner := -1
	for i := 0; i+1 < len(bounds); i++ {
		at, until := bounds[i], bounds[i+1]
		winner := -1
		for j, e := range entries {
			if !e.covers(at) {
				continue
			}
			if winner < 0 || e.outranks(entries[winner]) {
				winner = j
			}
		}
		if winner < 0 {
			lastWinner = -1
			continue
		}
		if winner == lastWinner && out[len(out)-1].End.Equal(at) {
			out[len(out)-1].End = until
			continue
		}
		piece := entries[winner]
		piece.Start, piece.End = at, until
		out = append(out, piece)
		lastWinner = winner
	}
	return out
}
