package timecode

import (
	"errors"
	"math"
	"testing"

	"github.com/forPelevin/vidalign/internal/types"
)

func TestParse_Table(t *testing.T) {
	tests := []struct {
		in   string
		want types.Instant
	}{
		{"00:00:00", 0},
		{"00:00:01.5", 1_500_000},
		{"00:01:02.000003", 62_000_003},
		{"01:00:00.250", 3_600_250_000},
		{"123:00:00", 123 * 3_600_000_000},
		{" 00:00:10.000000 ", 10_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{
		"",
		"00:00",
		"00-00-01",
		"00:60:00",
		"00:00:60",
		"00:0:01",
		"00:00:01.",
		"00:00:01.1234567",
		"00:00:01,500",
		"aa:00:01",
		"00:00:01.5x",
		"99999999999:00:00.5",
		"2562047788:00:54.775808",
		"99999999999999999999:00:00",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			if !errors.Is(err, types.ErrMalformedTimestamp) {
				t.Fatalf("Parse(%q) err = %v, want ErrMalformedTimestamp", in, err)
			}
		})
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	for _, i := range []types.Instant{0, 1, 999_999, 1_000_000, 59_999_999, 3_599_999_999, 86_400_000_001, 360_000_000_000, math.MaxInt64} {
		s := Format(i)
		got, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(Format(%d)) = %q: %v", i, s, err)
		}
		if got != i {
			t.Fatalf("round trip %d -> %q -> %d", i, s, got)
		}
	}
}

func TestFormat_Layout(t *testing.T) {
	if got := Format(62_000_003); got != "00:01:02.000003" {
		t.Fatalf("unexpected Format: %s", got)
	}
}

func TestMidpoint_FloorsOddSums(t *testing.T) {
	tests := []struct {
		start, end, want types.Instant
	}{
		{0, 10, 5},
		{0, 1, 0},
		{3, 6, 4},
		{10_000_000, 20_000_001, 15_000_000},
	}
	for _, tt := range tests {
		if got := Midpoint(tt.start, tt.end); got != tt.want {
			t.Fatalf("Midpoint(%d, %d) = %d, want %d", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestFromSeconds(t *testing.T) {
	if got := FromSeconds(2.5); got != 2_500_000 {
		t.Fatalf("FromSeconds = %d", got)
	}
	if got := FromSeconds(0.000001); got != 1 {
		t.Fatalf("FromSeconds = %d", got)
	}
	if got := FromSeconds(120); got.Seconds() != 120 {
		t.Fatalf("FromSeconds(120).Seconds() = %v", got.Seconds())
	}
}
