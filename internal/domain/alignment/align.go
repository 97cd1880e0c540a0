// Package alignment assigns transcript segments to scenes and assembles the
// per-segment dataset joined with video metadata.
package alignment

import (
	"math"
	"sort"

	"github.com/forPelevin/vidalign/internal/domain/timecode"
	"github.com/forPelevin/vidalign/internal/types"
)

// Input holds the raw, unparsed tables for one alignment run.
type Input struct {
	Scenes   []types.SceneRow
	Segments []types.SegmentRow
	Metadata types.MetadataTable
}

// Options tune hallucination retention and scene fallback.
type Options struct {
	Policy Policy
	// WholeVideoFallback gives every metadata video without detected scenes a
	// single scene spanning its full duration.
	WholeVideoFallback bool
}

// DefaultOptions uses DefaultPolicy and no whole-video fallback.
func DefaultOptions() Options {
	return Options{Policy: DefaultPolicy()}
}

// Align runs the whole alignment over raw rows. Scenes and segments are
// stably sorted by (video id, end) before indexing. A malformed timestamp or
// an ordering violation aborts the run and no dataset is returned.
func Align(in Input, opts Options) (types.Dataset, types.Report, error) {
	var report types.Report

	scenes, err := parseScenes(in.Scenes)
	if err != nil {
		return types.Dataset{}, types.Report{}, err
	}
	segments, err := parseSegments(in.Segments)
	if err != nil {
		return types.Dataset{}, types.Report{}, err
	}
	if opts.WholeVideoFallback {
		scenes = append(scenes, fallbackScenes(in.Metadata, scenes)...)
	}

	sort.SliceStable(scenes, func(i, j int) bool {
		if scenes[i].VideoID != scenes[j].VideoID {
			return scenes[i].VideoID < scenes[j].VideoID
		}
		return scenes[i].End < scenes[j].End
	})
	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].VideoID != segments[j].VideoID {
			return segments[i].VideoID < segments[j].VideoID
		}
		return segments[i].End < segments[j].End
	})

	indexed, err := IndexScenes(scenes)
	if err != nil {
		return types.Dataset{}, types.Report{}, err
	}
	assigned, err := AssignSegments(indexed, segments)
	if err != nil {
		return types.Dataset{}, types.Report{}, err
	}

	aggregates := ComputeAggregates(in.Metadata, indexed, segments, &report)

	kept, dropped := ApplyPolicy(assigned, opts.Policy)
	report.Counts.Scenes = len(indexed)
	report.Counts.Segments = len(segments)
	report.Counts.HallucinatedDropped = dropped
	for _, s := range kept {
		switch s.Status {
		case types.StatusAssigned:
			report.Counts.Assigned++
		case types.StatusHallucinated:
			report.Counts.HallucinatedRetained++
		case types.StatusOrphan:
			report.Counts.Orphans++
		}
	}

	ds := Assemble(AssembleInput{
		Scenes:     indexed,
		Segments:   kept,
		Metadata:   in.Metadata,
		Aggregates: aggregates,
	}, &report)
	return ds, report, nil
}

func parseScenes(rows []types.SceneRow) ([]types.Scene, error) {
	out := make([]types.Scene, 0, len(rows))
	for i, r := range rows {
		start, err := timecode.Parse(r.StartTimecode)
		if err != nil {
			return nil, &types.MalformedTimestampError{Table: "scenes", Row: i, VideoID: r.VideoID, Field: "start", Value: r.StartTimecode, Err: err}
		}
		end, err := timecode.Parse(r.EndTimecode)
		if err != nil {
			return nil, &types.MalformedTimestampError{Table: "scenes", Row: i, VideoID: r.VideoID, Field: "end", Value: r.EndTimecode, Err: err}
		}
		out = append(out, types.Scene{
			VideoID:    r.VideoID,
			Start:      start,
			End:        end,
			StartFrame: r.StartFrame,
			EndFrame:   r.EndFrame,
		})
	}
	return out, nil
}

func parseSegments(rows []types.SegmentRow) ([]types.Segment, error) {
	out := make([]types.Segment, 0, len(rows))
	for i, r := range rows {
		start, err := timecode.Parse(r.StartTime)
		if err != nil {
			return nil, &types.MalformedTimestampError{Table: "segments", Row: i, VideoID: r.VideoID, Field: "start", Value: r.StartTime, Err: err}
		}
		end, err := timecode.Parse(r.EndTime)
		if err != nil {
			return nil, &types.MalformedTimestampError{Table: "segments", Row: i, VideoID: r.VideoID, Field: "end", Value: r.EndTime, Err: err}
		}
		kind := types.SourceProvided
		if r.IsGenerated {
			kind = types.SourceGenerated
		}
		out = append(out, types.Segment{
			VideoID: r.VideoID,
			Start:   start,
			End:     end,
			Mid:     timecode.Midpoint(start, end),
			Text:    r.Text,
			Source:  kind,
		})
	}
	return out, nil
}

func fallbackScenes(meta types.MetadataTable, scenes []types.Scene) []types.Scene {
	has := make(map[string]bool, len(scenes))
	for _, sc := range scenes {
		has[sc.VideoID] = true
	}
	var out []types.Scene
	for _, v := range meta.Videos {
		if has[v.VideoID] || !(v.DurationSeconds > 0) {
			continue
		}
		has[v.VideoID] = true
		out = append(out, types.Scene{
			VideoID:  v.VideoID,
			End:      timecode.FromSeconds(v.DurationSeconds),
			EndFrame: int64(math.Floor(v.DurationSeconds * v.FPS)),
		})
	}
	return out
}
