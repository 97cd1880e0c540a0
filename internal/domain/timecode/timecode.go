// Package timecode converts between HH:MM:SS.ffffff wall-clock strings and
// integer microsecond instants.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/forPelevin/vidalign/internal/types"
)

const (
	usPerSecond = int64(1_000_000)
	usPerMinute = 60 * usPerSecond
	usPerHour   = 60 * usPerMinute
)

// Parse reads HH:MM:SS[.ffffff]. Hours may have any number of digits as
// long as the instant fits in int64;
// minutes and seconds are two digits below 60; the fraction has 1 to 6
// digits and is right-padded to microseconds.
func Parse(s string) (types.Instant, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, fmt.Errorf("empty value: %w", types.ErrMalformedTimestamp)
	}

	clock, frac, hasFrac := strings.Cut(v, ".")
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%q: want HH:MM:SS: %w", s, types.ErrMalformedTimestamp)
	}

	hours, ok := digits(parts[0], 1, 0)
	if !ok {
		return 0, fmt.Errorf("%q: bad hours: %w", s, types.ErrMalformedTimestamp)
	}
	minutes, ok := digits(parts[1], 2, 2)
	if !ok || minutes > 59 {
		return 0, fmt.Errorf("%q: bad minutes: %w", s, types.ErrMalformedTimestamp)
	}
	seconds, ok := digits(parts[2], 2, 2)
	if !ok || seconds > 59 {
		return 0, fmt.Errorf("%q: bad seconds: %w", s, types.ErrMalformedTimestamp)
	}

	var micros int64
	if hasFrac {
		if _, ok := digits(frac, 1, 6); !ok {
			return 0, fmt.Errorf("%q: bad fraction: %w", s, types.ErrMalformedTimestamp)
		}
		padded := frac + strings.Repeat("0", 6-len(frac))
		micros, _ = strconv.ParseInt(padded, 10, 64)
	}

	rest := minutes*usPerMinute + seconds*usPerSecond + micros
	if hours > (math.MaxInt64-rest)/usPerHour {
		return 0, fmt.Errorf("%q: out of range: %w", s, types.ErrMalformedTimestamp)
	}
	return types.Instant(hours*usPerHour + rest), nil
}

// Format renders an instant as HH:MM:SS.ffffff with six fraction digits.
// Parse(Format(i)) == i for every non-negative instant.
func Format(i types.Instant) string {
	v := int64(i)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	h := v / usPerHour
	v -= h * usPerHour
	m := v / usPerMinute
	v -= m * usPerMinute
	sec := v / usPerSecond
	us := v - sec*usPerSecond
	return fmt.Sprintf("%s%02d:%02d:%02d.%06d", sign, h, m, sec, us)
}

// Midpoint returns floor((start+end)/2). Odd sums resolve toward the earlier
// instant, so the result is reproducible across runs and platforms.
func Midpoint(start, end types.Instant) types.Instant {
	sum := int64(start) + int64(end)
	q := sum / 2
	if sum%2 != 0 && sum < 0 {
		q--
	}
	return types.Instant(q)
}

// FromSeconds converts fractional seconds, rounding to the nearest microsecond.
func FromSeconds(sec float64) types.Instant {
	return types.Instant(math.Round(sec * float64(usPerSecond)))
}

// digits parses s as an unsigned decimal with a length in [minLen, maxLen].
// maxLen 0 means unbounded.
func digits(s string, minLen, maxLen int) (int64, bool) {
	if len(s) < minLen || (maxLen > 0 && len(s) > maxLen) {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
