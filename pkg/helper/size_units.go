package helper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSizeSuffix is returned if the suffix is not valid.
var ErrInvalidSizeSuffix = errors.New("invalid size suffix")

// sizeSuffixes is checked in order, with the multi-letter suffixes before
// "B", so "GB", "MB", "KB" and "BYTES" are not shadowed by the
// single-letter "B" match.
var sizeSuffixes = []struct {
	suffix     string
	multiplier float64
}{
	{"GB", 1_000_000_000},
	{"MB", 1_000_000},
	{"KB", 1_000},
	{"BYTES", 1},
	{"B", 1},
}

// ParseSize parses a decimal size string with a GB/MB/KB/B suffix (case
// insensitive, optional surrounding whitespace) and returns the size in
// bytes. Unlike binary (1024-based) size parsers, 1GB is exactly
// 1,000,000,000 bytes.
func ParseSize(str string) (uint64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(str))

	for _, s := range sizeSuffixes {
		rest, ok := strings.CutSuffix(trimmed, s.suffix)
		if !ok {
			continue
		}

		num, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
		if err != nil {
			return 0, fmt.Errorf("error parsing the numeric part of %q: %w", str, err)
		}

		if num < 0 {
			return 0, fmt.Errorf("error parsing %q: %w", str, ErrInvalidSizeSuffix)
		}

		return uint64(num * s.multiplier), nil
	}

	return 0, fmt.Errorf("error parsing the unit for %q: %w", str, ErrInvalidSizeSuffix)
}
