package jwt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownDurationUnit is returned for duration specs whose unit is not d, h or m.
var ErrUnknownDurationUnit = errors.New("jwt: unknown duration unit")

// ParseDurationSpec parses an integer followed by one of the units d, h or m.
//
// "7d", "12h" and "15m" are accepted. Empty input, non-positive amounts, amounts
// that overflow time.Duration and any other unit fail; nothing falls back to a
// default.
func ParseDurationSpec(spec string) (time.Duration, error) {
	spec = strings.TrimSpace(spec)
	if len(spec) < 2 {
		return 0, fmt.Errorf("jwt: invalid duration %q", spec)
	}

	amount, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || amount <= 0 {
		return 0, fmt.Errorf("jwt: invalid duration %q", spec)
	}

	var unit time.Duration
	switch spec[len(spec)-1] {
	case 'd':
		unit = 24 * time.Hour
	case 'h':
		unit = time.Hour
	case 'm':
		unit = time.Minute
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDurationUnit, spec)
	}

	if int64(amount) > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("jwt: duration %q out of range", spec)
	}
	return time.Duration(amount) * unit, nil
}

// ComputeExpiry returns now plus the duration described by spec.
func ComputeExpiry(spec string, now time.Time) (time.Time, error) {
	d, err := ParseDurationSpec(spec)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(d), nil
}
