package blocks

import "fmt"

// MinutesPerDay is the number of minutes in a survey day.
const MinutesPerDay = 24 * 60

// Layout fixes the block duration of a day. The zero value is not usable;
// build one with NewLayout so the duration is validated once.
type Layout struct {
	minutes int
}

// NewLayout validates a block duration in minutes.
func NewLayout(minutes int) (Layout, error) {
	if minutes <= 0 || minutes > MinutesPerDay || MinutesPerDay%minutes != 0 {
		return Layout{}, fmt.Errorf("%w: %d minutes", ErrInvalidBlockDuration, minutes)
	}
	return Layout{minutes: minutes}, nil
}

// LayoutForBlocks derives the layout from a blocks-per-day count, as stored in
// block file headers.
func LayoutForBlocks(blocksPerDay int) (Layout, error) {
	if blocksPerDay <= 0 || MinutesPerDay%blocksPerDay != 0 {
		return Layout{}, fmt.Errorf("%w: %d blocks per day", ErrInvalidBlockDuration, blocksPerDay)
	}
	return NewLayout(MinutesPerDay / blocksPerDay)
}

// Minutes returns the block duration in minutes.
func (l Layout) Minutes() int { return l.minutes }

// Seconds returns the block duration in seconds.
func (l Layout) Seconds() int32 { return int32(l.minutes * 60) }

// BlocksPerDay returns the number of blocks in a day.
func (l Layout) BlocksPerDay() int {
	if l.minutes == 0 {
		return 0
	}
	return MinutesPerDay / l.minutes
}

// Bounds returns the half-open second range [start, end) covered by block b.
func (l Layout) Bounds(b int) (start, end int32) {
	d := l.Seconds()
	return int32(b) * d, int32(b+1) * d
}

// BlockAt returns the index of the block containing secs after midnight.
func (l Layout) BlockAt(secs int32) int {
	return int(secs / l.Seconds())
}
