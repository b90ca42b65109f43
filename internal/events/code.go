package events

import (
	"fmt"
	"strconv"
	"strings"
)

const eventCodePrefix = "EV-"

// YearPrefix returns the code prefix shared by every event created in year.
func YearPrefix(year int) string {
	return fmt.Sprintf("%s%d-", eventCodePrefix, year)
}

// NextCode increments the numeric suffix of greatest, the largest existing code for year.
// It starts at 1 when greatest is empty or its suffix is not a number.
func NextCode(year int, greatest string) string {
	prefix := YearPrefix(year)
	sequence := 1
	if suffix, ok := strings.CutPrefix(greatest, prefix); ok {
		if parsed, err := strconv.Atoi(suffix); err == nil && parsed >= 0 {
			sequence = parsed + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, sequence)
}
