package alignment

import (
	"fmt"
	"sort"

	"github.com/forPelevin/vidalign/internal/types"
)

// AssembleInput carries the indexed, assigned and aggregated pieces of a run.
type AssembleInput struct {
	// Scenes are indexed scenes grouped by video.
	Scenes []types.Scene
	// Segments are the segments kept after ApplyPolicy, in end order per video.
	Segments   []types.AssignedSegment
	Metadata   types.MetadataTable
	Aggregates map[string]VideoAggregates
}

// Assemble joins segments to scenes and the result to metadata, reconciles
// boundaries per video, and broadcasts the aggregates.
//
// Videos appear in metadata order followed by the remaining ids in ascending
// order. Inside a video, rows follow scene ordinal with matched segments in
// input order, then segments without a scene in input order.
func Assemble(in AssembleInput, report *types.Report) types.Dataset {
	scenesByVideo := make(map[string][]types.Scene)
	for _, sc := range in.Scenes {
		scenesByVideo[sc.VideoID] = append(scenesByVideo[sc.VideoID], sc)
	}
	segsByVideo := make(map[string][]types.AssignedSegment)
	for _, s := range in.Segments {
		segsByVideo[s.VideoID] = append(segsByVideo[s.VideoID], s)
	}

	metaByVideo := make(map[string]*types.VideoMetadata, len(in.Metadata.Videos))
	order := make([]string, 0, len(in.Metadata.Videos))
	for i := range in.Metadata.Videos {
		v := &in.Metadata.Videos[i]
		if _, dup := metaByVideo[v.VideoID]; dup {
			continue
		}
		metaByVideo[v.VideoID] = v
		order = append(order, v.VideoID)
	}
	var extra []string
	for id := range scenesByVideo {
		if _, ok := metaByVideo[id]; !ok {
			extra = append(extra, id)
		}
	}
	for id := range segsByVideo {
		if _, ok := metaByVideo[id]; !ok {
			if _, counted := scenesByVideo[id]; !counted {
				extra = append(extra, id)
			}
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	ds := types.Dataset{MetadataColumns: append([]string(nil), in.Metadata.Columns...)}
	for _, id := range order {
		rows := videoRows(id, scenesByVideo[id], segsByVideo[id], report)
		Reconcile(rows)

		meta := metaByVideo[id]
		agg := in.Aggregates[id]
		if meta == nil {
			report.Add(types.IssueOrphanReference, id, "video has no metadata row")
		}
		if len(rows) == 0 {
			rows = append(rows, types.AlignedRow{VideoID: id})
		}
		for i := range rows {
			rows[i].Metadata = meta
			rows[i].AverageSpeakingRateWPM = agg.SpeakingRateWPM
			rows[i].AverageShotLengthSeconds = agg.ShotLengthSeconds
		}
		ds.Rows = append(ds.Rows, rows...)
	}

	report.Counts.Videos = len(order)
	report.Counts.Rows = len(ds.Rows)
	return ds
}

// videoRows performs the scene/segment outer join for one video.
func videoRows(videoID string, scenes []types.Scene, segs []types.AssignedSegment, report *types.Report) []types.AlignedRow {
	byOrdinal := make(map[int][]types.AssignedSegment, len(scenes))
	known := make(map[int]bool, len(scenes))
	for _, sc := range scenes {
		known[sc.Ordinal] = true
	}

	var loose []types.AssignedSegment
	orphans := 0
	for _, s := range segs {
		switch {
		case s.Status == types.StatusAssigned && known[s.Ordinal]:
			byOrdinal[s.Ordinal] = append(byOrdinal[s.Ordinal], s)
		case s.Status == types.StatusAssigned:
			report.Add(types.IssueOrphanReference, videoID, fmt.Sprintf("segment references missing scene %d", s.Ordinal))
			loose = append(loose, s)
		case s.Status == types.StatusOrphan:
			orphans++
			loose = append(loose, s)
		default:
			loose = append(loose, s)
		}
	}
	if orphans > 0 {
		report.Add(types.IssueOrphanReference, videoID, fmt.Sprintf("%d segments have no scenes", orphans))
	}

	rows := make([]types.AlignedRow, 0, len(scenes)+len(segs))
	for _, sc := range scenes {
		matched := byOrdinal[sc.Ordinal]
		if len(matched) == 0 {
			rows = append(rows, sceneRow(sc))
			continue
		}
		for _, s := range matched {
			r := sceneRow(sc)
			setSegment(&r, s)
			rows = append(rows, r)
		}
	}
	for _, s := range loose {
		r := types.AlignedRow{VideoID: videoID}
		setSegment(&r, s)
		rows = append(rows, r)
	}
	return rows
}

func sceneRow(sc types.Scene) types.AlignedRow {
	ordinal := sc.Ordinal
	start, end := sc.Start, sc.End
	sf, ef := sc.StartFrame, sc.EndFrame
	return types.AlignedRow{
		VideoID:      sc.VideoID,
		SceneOrdinal: &ordinal,
		SceneStart:   &start,
		SceneEnd:     &end,
		StartFrame:   &sf,
		EndFrame:     &ef,
	}
}

func setSegment(r *types.AlignedRow, s types.AssignedSegment) {
	start, end := s.Start, s.End
	kind := s.Source
	r.SegmentStart = &start
	r.SegmentEnd = &end
	r.Text = s.Text
	r.Source = &kind
	r.Hallucinated = s.Status == types.StatusHallucinated
}
