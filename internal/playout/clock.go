package playout

import "time"

// nowMonotonic returns the current time carrying Go's monotonic reading,
// which is all the jitter EWMA and scheduler drift arithmetic need (spec
// §6's "monotonic nanosecond clock" collaborator).
func nowMonotonic() time.Time {
	return time.Now()
}
