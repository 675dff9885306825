// Package points holds the Order of Merit points table and the tie-split rule.
//
// Every path that turns a finishing position into season points goes through
// this package; the precomputed results log and the inline fallback must
// never carry their own copy of the table.
package points

import "fmt"

// MaxScoringPosition is the last position that earns points.
const MaxScoringPosition = 10

// table[i] is the value of position i+1.
var table = [MaxScoringPosition]float64{25, 18, 15, 12, 10, 8, 6, 4, 2, 1}

// Entry is one row of the legend.
type Entry struct {
	Position int     `json:"position" yaml:"position"`
	Points   float64 `json:"points" yaml:"points"`
}

// For returns the points for a finishing position. Positions after
// MaxScoringPosition earn nothing. A position below 1 is a caller bug.
func For(position int) float64 {
	if position < 1 {
		panic(fmt.Sprintf("points: position %d out of range", position))
	}
	if position > MaxScoringPosition {
		return 0
	}
	return table[position-1]
}

// Split returns the value each member of a tie group receives when the group
// occupies ranks [rank, rank+size-1]: the average of those ranks' points.
func Split(rank, size int) float64 {
	if size < 1 {
		panic(fmt.Sprintf("points: tie group size %d out of range", size))
	}
	return Sum(rank, size) / float64(size)
}

// Sum returns the total points of ranks [rank, rank+size-1].
func Sum(rank, size int) float64 {
	var total float64
	for p := rank; p < rank+size; p++ {
		total += For(p)
	}
	return total
}

// Legend returns the scoring positions in order.
func Legend() []Entry {
	out := make([]Entry, 0, MaxScoringPosition)
	for i, v := range table {
		out = append(out, Entry{Position: i + 1, Points: v})
	}
	return out
}
