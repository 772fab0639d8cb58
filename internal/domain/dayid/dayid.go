// Package dayid replaces (year, serial) survey day identities with dense,
// zero-based day ids.
package dayid

import (
	"cmp"
	"maps"
	"slices"

	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/survey"
)

// Key identifies one surveyed person-day.
type Key struct {
	Year   uint32
	Serial uint64
}

// Compare orders keys by serial, then year.
func (k Key) Compare(o Key) int {
	if c := cmp.Compare(k.Serial, o.Serial); c != 0 {
		return c
	}
	return cmp.Compare(k.Year, o.Year)
}

// KeyOf returns the day key of a normalized record.
func KeyOf(r survey.NormalizedRecord) Key {
	return Key{Year: r.Year, Serial: r.Serial}
}

// Record is a normalized record tagged with its dense day id.
type Record struct {
	DayID    uint32
	Start    int32
	Stop     int32
	Activity activity.Category
}

// Assignment maps day keys to dense ids. Ids follow key order, so the same
// set of records always yields the same ids regardless of row order.
type Assignment struct {
	ids  map[Key]uint32
	keys []Key
}

// Assign collects every distinct key and numbers them in key order.
func Assign(records []survey.NormalizedRecord) *Assignment {
	ids := make(map[Key]uint32)
	for _, r := range records {
		ids[KeyOf(r)] = 0
	}
	keys := make([]Key, 0, len(ids))
	for k := range ids {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, Key.Compare)
	for i, k := range keys {
		ids[k] = uint32(i)
	}
	return &Assignment{ids: ids, keys: keys}
}

// Len returns the number of distinct days.
func (a *Assignment) Len() int { return len(a.keys) }

// ID returns the id assigned to k.
func (a *Assignment) ID(k Key) (uint32, bool) {
	id, ok := a.ids[k]
	return id, ok
}

// Key returns the key that received id.
func (a *Assignment) Key(id uint32) (Key, bool) {
	if int(id) >= len(a.keys) {
		return Key{}, false
	}
	return a.keys[id], true
}

// Keys returns the keys in id order.
func (a *Assignment) Keys() []Key { return slices.Clone(a.keys) }

// Tag converts records into day-tagged records, preserving input order.
// Records whose key was not part of the assignment are skipped.
func (a *Assignment) Tag(records []survey.NormalizedRecord) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		id, ok := a.ids[KeyOf(r)]
		if !ok {
			continue
		}
		out = append(out, Record{DayID: id, Start: r.Start, Stop: r.Stop, Activity: r.Activity})
	}
	return out
}

// GroupByDay buckets tagged records by day id. Only ids that occur get a
// bucket; buckets are in ascending id order, so gaps in the ids never produce
// empty days.
func GroupByDay(records []Record) [][]Record {
	byID := make(map[uint32][]Record)
	for _, r := range records {
		byID[r.DayID] = append(byID[r.DayID], r)
	}
	ids := slices.Sorted(maps.Keys(byID))
	days := make([][]Record, len(ids))
	for i, id := range ids {
		days[i] = byID[id]
	}
	return days
}
