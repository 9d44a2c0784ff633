package util

import (
	"fmt"
	"strconv"
)

// ParseBoundedInt parses an optional query value. Empty input yields
// defaultValue; anything outside [min, max] is an error.
func ParseBoundedInt(s string, defaultValue, min, max int) (int, error) {
	if s == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if val < min || val > max {
		return 0, fmt.Errorf("must be between %d and %d", min, max)
	}
	return val, nil
}
