package gitver

import "time"

// BuildEpoch is the fixed instant build ordinals are counted from.
var BuildEpoch = time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC)

// BuildOrdinal returns the number of whole hours elapsed since BuildEpoch.
// It depends only on the wall clock, so machines agree on it without sharing
// any state.
func BuildOrdinal() int64 {
	return BuildOrdinalAt(time.Now())
}

// BuildOrdinalAt returns the build ordinal for t.
func BuildOrdinalAt(t time.Time) int64 {
	d := t.UTC().Sub(BuildEpoch)
	hours := int64(d / time.Hour)
	if d < 0 && d%time.Hour != 0 {
		hours--
	}
	return hours
}
