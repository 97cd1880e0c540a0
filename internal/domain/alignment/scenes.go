package alignment

import "github.com/forPelevin/vidalign/internal/types"

// IndexScenes numbers scenes within each video run, starting at 0.
// Scenes must be grouped by video and ordered by end instant inside a group;
// a decreasing end or a video id that reappears after its run ended is
// reported as ErrUnsortedInput. The input slice is not modified.
func IndexScenes(scenes []types.Scene) ([]types.Scene, error) {
	out := make([]types.Scene, len(scenes))
	seen := make(map[string]bool)
	ordinal := 0
	for i, sc := range scenes {
		if i == 0 || sc.VideoID != scenes[i-1].VideoID {
			if seen[sc.VideoID] {
				return nil, &types.UnsortedInputError{Stage: "index scenes", VideoID: sc.VideoID, Index: i}
			}
			seen[sc.VideoID] = true
			ordinal = 0
		} else if sc.End < scenes[i-1].End {
			return nil, &types.UnsortedInputError{Stage: "index scenes", VideoID: sc.VideoID, Index: i}
		}
		sc.Ordinal = ordinal
		ordinal++
		out[i] = sc
	}
	return out, nil
}

// sceneRuns splits indexed scenes into per-video slices that share the
// backing array of the input.
func sceneRuns(scenes []types.Scene) map[string][]types.Scene {
	runs := make(map[string][]types.Scene)
	start := 0
	for i := 1; i <= len(scenes); i++ {
		if i == len(scenes) || scenes[i].VideoID != scenes[start].VideoID {
			runs[scenes[start].VideoID] = scenes[start:i:i]
			start = i
		}
	}
	return runs
}
