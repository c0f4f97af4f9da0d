package utils

import (
	"math"
	"time"
)

// CeilDays returns the number of started days between now and until, 0 when
// until is not after now.
func CeilDays(now, until time.Time) int {
	if !until.After(now) {
		return 0
	}
	return int(math.Ceil(until.Sub(now).Hours() / 24))
}
