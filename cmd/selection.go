package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// RangeError reports selected numbers outside the listed range
type RangeError struct {
	Numbers []int
	Max     int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid thread numbers %v: must be between 1 and %d", e.Numbers, e.Max)
}

// parseSelection parses thread numbers as shown by the catalog table
// (1-based) separated by spaces or commas, or the word "all". It returns
// sorted, deduplicated 0-based indices and the tokens that were not
// numbers. Any number outside 1..n fails the whole selection.
func parseSelection(input string, n int) (indices []int, invalid []string, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, nil
	}

	if strings.EqualFold(input, "all") {
		for i := 0; i < n; i++ {
			indices = append(indices, i)
		}
		return indices, nil, nil
	}

	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	var outOfRange []int
	for _, field := range fields {
		num, convErr := strconv.Atoi(field)
		if convErr != nil {
			invalid = append(invalid, field)
			continue
		}
		if num < 1 || num > n {
			outOfRange = append(outOfRange, num)
			continue
		}
		indices = append(indices, num-1)
	}

	if len(outOfRange) > 0 {
		return nil, invalid, &RangeError{Numbers: outOfRange, Max: n}
	}

	slices.Sort(indices)
	return slices.Compact(indices), invalid, nil
}
