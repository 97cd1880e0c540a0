package alignment

import (
	"strings"

	"github.com/forPelevin/vidalign/internal/types"
)

// VideoAggregates are the per-video values broadcast onto every dataset row.
// A nil field is a missing value.
type VideoAggregates struct {
	SpeakingRateWPM   *float64
	ShotLengthSeconds *float64
}

// ComputeAggregates derives speaking rate and shot length for every video in
// meta. Word counts cover all given segments, so callers pass segments before
// any hallucination drop. A zero duration or a zero scene count leaves the
// value missing and records a ZeroDenominator issue. A video without any
// segment has no speaking rate and no issue. Only the first metadata row of
// a video counts, matching Assemble.
func ComputeAggregates(meta types.MetadataTable, scenes []types.Scene, segments []types.Segment, report *types.Report) map[string]VideoAggregates {
	sceneCount := make(map[string]int)
	for _, sc := range scenes {
		sceneCount[sc.VideoID]++
	}
	words := make(map[string]int)
	segCount := make(map[string]int)
	for _, seg := range segments {
		words[seg.VideoID] += WordCount(seg.Text)
		segCount[seg.VideoID]++
	}

	out := make(map[string]VideoAggregates, len(meta.Videos))
	for _, v := range meta.Videos {
		if _, seen := out[v.VideoID]; seen {
			continue
		}
		var agg VideoAggregates
		validDuration := v.DurationSeconds > 0

		if segCount[v.VideoID] > 0 {
			if validDuration {
				wpm := float64(words[v.VideoID]) / (v.DurationSeconds / 60)
				agg.SpeakingRateWPM = &wpm
			} else {
				report.Add(types.IssueZeroDenominator, v.VideoID, "average_speaking_rate_wpm: duration is zero")
			}
		}

		n := sceneCount[v.VideoID]
		switch {
		case n == 0:
			report.Add(types.IssueZeroDenominator, v.VideoID, "average_shot_length_seconds: no scenes")
		case !validDuration:
			report.Add(types.IssueZeroDenominator, v.VideoID, "average_shot_length_seconds: duration is zero")
		default:
			shot := v.DurationSeconds / float64(n)
			agg.ShotLengthSeconds = &shot
		}

		out[v.VideoID] = agg
	}
	return out
}

// WordCount counts whitespace-delimited non-empty tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
