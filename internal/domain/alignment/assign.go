package alignment

import "github.com/forPelevin/vidalign/internal/types"

// AssignSegments labels every segment with the first scene of its video whose
// end is at or after the segment midpoint.
//
// scenes must come from IndexScenes. segments must be grouped by video and
// ordered by end instant inside a group. Each video keeps one cursor that only
// moves forward, so assigned ordinals never decrease along a video. A segment
// whose midpoint lies past the last scene is StatusHallucinated and leaves the
// cursor where it is; a segment of a video without scenes is StatusOrphan.
func AssignSegments(scenes []types.Scene, segments []types.Segment) ([]types.AssignedSegment, error) {
	runs := sceneRuns(scenes)
	out := make([]types.AssignedSegment, 0, len(segments))

	seen := make(map[string]bool)
	var run []types.Scene
	cursor := 0
	for i, seg := range segments {
		if i == 0 || seg.VideoID != segments[i-1].VideoID {
			if seen[seg.VideoID] {
				return nil, &types.UnsortedInputError{Stage: "assign segments", VideoID: seg.VideoID, Index: i}
			}
			seen[seg.VideoID] = true
			run = runs[seg.VideoID]
			cursor = 0
		} else if seg.End < segments[i-1].End {
			return nil, &types.UnsortedInputError{Stage: "assign segments", VideoID: seg.VideoID, Index: i}
		}

		as := types.AssignedSegment{Segment: seg}
		if len(run) == 0 {
			as.Status = types.StatusOrphan
			out = append(out, as)
			continue
		}

		last := len(run) - 1
		for cursor < last && run[cursor].End < seg.Mid {
			cursor++
		}
		if seg.Mid <= run[cursor].End {
			as.Status = types.StatusAssigned
			as.Ordinal = run[cursor].Ordinal
		} else {
			as.Status = types.StatusHallucinated
		}
		out = append(out, as)
	}
	return out, nil
}

// Policy decides which hallucinated segments survive assignment.
type Policy struct {
	// RetainProvidedHallucinations keeps out-of-range platform subtitles;
	// they are treated as an edge effect of authoritative captions.
	RetainProvidedHallucinations bool
	// RetainGeneratedHallucinations keeps out-of-range generated transcript
	// segments, which are otherwise treated as transcription errors.
	RetainGeneratedHallucinations bool
}

// DefaultPolicy retains provided subtitles past the last scene and drops
// generated ones.
func DefaultPolicy() Policy {
	return Policy{RetainProvidedHallucinations: true}
}

func (p Policy) retains(kind types.SourceKind) bool {
	if kind == types.SourceGenerated {
		return p.RetainGeneratedHallucinations
	}
	return p.RetainProvidedHallucinations
}

// ApplyPolicy returns the segments to carry into the dataset and the number
// of hallucinated segments dropped.
func ApplyPolicy(segments []types.AssignedSegment, p Policy) ([]types.AssignedSegment, int) {
	kept := make([]types.AssignedSegment, 0, len(segments))
	dropped := 0
	for _, s := range segments {
		if s.Status == types.StatusHallucinated && !p.retains(s.Source) {
			dropped++
			continue
		}
		kept = append(kept, s)
	}
	return kept, dropped
}
