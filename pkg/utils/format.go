package utils

import (
	"fmt"
	"math"
)

// FormatPercentChange renders the change from previous to current as a signed percentage
// with one decimal, e.g. "+12.5%". A zero previous value has no meaningful ratio and
// renders as "n/a".
func FormatPercentChange(previous, current float64) string {
	if previous == 0 {
		return "n/a"
	}

	change := math.Round((current-previous)/previous*1000) / 10
	if change == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%+.1f%%", change)
}

// FormatTimeframe renders a report window length
func FormatTimeframe(hours int) string {
	return fmt.Sprintf("%d hours", hours)
}
