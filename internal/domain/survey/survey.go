// Package survey normalizes raw time-use survey rows into compact records.
package survey

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/pkg/logger"
	"github.com/okian/dayflow/pkg/metrics"
)

// RawRecord is one activity interval as delivered by the survey extract.
// Demographic and weight columns are carried but never interpreted.
type RawRecord struct {
	Year         uint32
	CaseID       uint64
	Serial       uint64
	FamilyIncome uint32
	Tenure       uint32
	HouseType    uint32
	PersonNumber uint32
	LineNumber   uint32
	Weight       float64
	Schooling    uint32
	Activity     uint64
	Start        string
	Stop         string
}

// NormalizedRecord is a raw record with numeric clock times and a compact
// activity category.
type NormalizedRecord struct {
	Year     uint32
	Serial   uint64
	Activity activity.Category
	Start    int32 // seconds after midnight
	Stop     int32 // seconds after midnight
}

// Normalize converts one raw record. ok is false when the activity code has no
// category; err is set when either clock time is malformed. Clock times are
// checked before the activity code so a bad timestamp is never masked by a drop.
func Normalize(raw RawRecord) (rec NormalizedRecord, ok bool, err error) {
	start, err := ParseClock(raw.Start)
	if err != nil {
		return rec, false, withField(err, "start")
	}
	stop, err := ParseClock(raw.Stop)
	if err != nil {
		return rec, false, withField(err, "stop")
	}

	if raw.Activity > uint64(^uint32(0)) {
		return rec, false, nil
	}
	cat, ok := activity.FromRawCode(uint32(raw.Activity))
	if !ok {
		return rec, false, nil
	}

	return NormalizedRecord{
		Year:     raw.Year,
		Serial:   raw.Serial,
		Activity: cat,
		Start:    start,
		Stop:     stop,
	}, true, nil
}

func withField(err error, field string) error {
	if te, ok := err.(*TimestampError); ok {
		cp := *te
		cp.Field = field
		return &cp
	}
	return err
}

// Stats summarizes one remap batch.
type Stats struct {
	Read     int
	Remapped int
	Dropped  int
	// DroppedCodes counts dropped rows by raw activity code.
	DroppedCodes map[uint64]int
}

// Option applies a configuration option to the Remapper.
type Option func(*Remapper)

// WithLogger sets a custom logger for the remapper.
func WithLogger(l logger.Logger) Option {
	return func(r *Remapper) {
		if l != nil {
			r.logger = l
		}
	}
}

// Remapper normalizes batches of raw records.
type Remapper struct {
	logger logger.Logger
}

// NewRemapper creates a remapper with configuration options.
func NewRemapper(opts ...Option) *Remapper {
	r := &Remapper{logger: logger.Named("remap")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Remap normalizes every record in input order. Rows with unmapped activity
// codes are dropped and counted. The first malformed timestamp aborts the
// whole batch.
func (r *Remapper) Remap(ctx context.Context, raws []RawRecord) ([]NormalizedRecord, Stats, error) {
	start := time.Now()
	defer func() { metrics.RecordStageDuration("remap", metrics.Since(start)) }()

	stats := Stats{DroppedCodes: make(map[uint64]int)}
	out := make([]NormalizedRecord, 0, len(raws))
	for i, raw := range raws {
		stats.Read++
		rec, ok, err := Normalize(raw)
		if err != nil {
			metrics.RecordMalformedTimestamp()
			metrics.RecordStageError("remap", "malformed_timestamp")
			return nil, stats, fmt.Errorf("record %d (year %d, serial %d): %w", i, raw.Year, raw.Serial, err)
		}
		if !ok {
			stats.Dropped++
			stats.DroppedCodes[raw.Activity]++
			r.logger.Debug(ctx, "dropping record with unmapped activity code",
				logger.Int("index", i),
				logger.Uint64("activity", raw.Activity),
			)
			continue
		}
		out = append(out, rec)
	}
	stats.Remapped = len(out)

	metrics.RecordRecordsRead(stats.Read)
	metrics.RecordRecordsRemapped(stats.Remapped)
	metrics.RecordRecordsDropped(stats.Dropped)
	r.logger.Info(ctx, "remapped survey records",
		logger.Int("read", stats.Read),
		logger.Int("remapped", stats.Remapped),
		logger.Int("dropped", stats.Dropped),
	)
	return out, stats, nil
}
