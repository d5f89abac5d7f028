package model

import "fmt"

// Loop repeat multipliers accepted by the loop renderer.
var ValidLoopCounts = []int{2, 4, 8, 16}

// StemNames returns the channel names produced for a given stem count.
func StemNames(stemCount int) ([]string, error) {
	switch stemCount {
	case 2:
		return []string{"vocals", "accompaniment"}, nil
	case 4:
		return []string{"vocals", "drums", "bass", "other"}, nil
	case 5:
		return []string{"vocals", "drums", "bass", "piano", "other"}, nil
	default:
		return nil, fmt.Errorf("invalid stem count %d: must be 2, 4, or 5", stemCount)
	}
}

// ValidStemCount reports whether n is a supported separation width.
func ValidStemCount(n int) bool {
	return n == 2 || n == 4 || n == 5
}

// ValidLoopCount reports whether n is a supported repeat multiplier.
func ValidLoopCount(n int) bool {
	for _, c := range ValidLoopCounts {
		if n == c {
			return true
		}
	}
	return false
}

// StemCountFor infers the separation width from the set of stem names found
// on disk. Used by reconciliation when the count was never recorded.
func StemCountFor(names []string) int {
	has := make(map[string]bool, len(names))
	for _, n := range names {
		has[n] = true
	}
	switch {
	case has["piano"]:
		return 5
	case has["accompaniment"]:
		return 2
	default:
		return 4
	}
}

// ValidateRange checks a sample/loop time range against the source duration.
// A nil maxDuration skips the upper-bound check (duration unknown).
func ValidateRange(start, end float64, maxDuration *float64) error {
	if start < 0 {
		return fmt.Errorf("start time %g must not be negative", start)
	}
	if start >= end {
		return fmt.Errorf("start time %g must be before end time %g", start, end)
	}
	if maxDuration != nil && end > *maxDuration {
		return fmt.Errorf("end time %g exceeds source duration %g", end, *maxDuration)
	}
	return nil
}
