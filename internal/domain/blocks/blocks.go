// Package blocks discretizes a day of activity intervals into fixed-length
// time blocks, each labelled with its dominant activity category.
package blocks

import (
	"fmt"

	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/dayid"
)

// Array holds one category per block of a day.
type Array []activity.Category

// Bytes returns the compact codes of a as raw bytes.
func (a Array) Bytes() []byte {
	out := make([]byte, len(a))
	for i, c := range a {
		out[i] = c.Code()
	}
	return out
}

// FromBytes builds an Array from raw compact codes. Codes above the sentinel
// are rejected.
func FromBytes(b []byte) (Array, error) {
	out := make(Array, len(b))
	for i, code := range b {
		c, ok := activity.FromCode(code)
		if !ok {
			return nil, fmt.Errorf("block %d: invalid activity code %d", i, code)
		}
		out[i] = c
	}
	return out, nil
}

// Discretize assigns every block of the layout its dominant category from the
// records of one day.
func Discretize(l Layout, records []dayid.Record) Array {
	out := make(Array, l.BlocksPerDay())
	for b := range out {
		out[b] = Dominant(l, b, records)
	}
	return out
}

// Overlap returns the seconds record r contributes to the block [start, end).
// A record whose start is not before its stop crosses midnight; only the part
// from its start to the end of the block is credited and its stop is ignored.
func Overlap(r dayid.Record, start, end int32) int32 {
	if r.Start < r.Stop {
		return clamp(r.Stop, start, end) - clamp(r.Start, start, end)
	}
	return end - clamp(r.Start, start, end)
}

// Dominant returns the category with the most seconds in block b. Missing-data
// records never count, the earliest category wins ties, and a block with no
// credited seconds is the sentinel.
func Dominant(l Layout, b int, records []dayid.Record) activity.Category {
	start, end := l.Bounds(b)

	var seconds [activity.Count]int64
	for _, r := range records {
		if r.Activity == activity.Sentinel || !r.Activity.Valid() {
			continue
		}
		seconds[r.Activity] += int64(Overlap(r, start, end))
	}

	best := activity.Sentinel
	var most int64
	for c, s := range seconds {
		if s > most {
			most = s
			best = activity.Category(c)
		}
	}
	return best
}

func clamp(v, lo, hi int32) int32 {
	return max(lo, min(v, hi))
}
