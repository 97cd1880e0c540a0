package alignment

import "github.com/forPelevin/vidalign/internal/types"

// Reconcile fills missing segment boundaries in place. Rows are grouped by
// video id; order inside a group is the slice order.
//
// Missing starts take the previous row's end as it was before the pass, then
// missing ends take the next row's start after the first fill. Whatever is
// still missing falls back to the row's scene start or end. Running Reconcile
// twice gives the same rows as running it once.
func Reconcile(rows []types.AlignedRow) {
	ends := make([]*types.Instant, len(rows))
	for i := range rows {
		ends[i] = rows[i].SegmentEnd
	}

	prev := make(map[string]int, 8)
	for i := range rows {
		r := &rows[i]
		if p, ok := prev[r.VideoID]; ok && r.SegmentStart == nil && ends[p] != nil {
			r.SegmentStart = instantPtr(*ends[p])
		}
		prev[r.VideoID] = i
	}

	next := make(map[string]int, 8)
	for i := len(rows) - 1; i >= 0; i-- {
		r := &rows[i]
		if n, ok := next[r.VideoID]; ok && r.SegmentEnd == nil && rows[n].SegmentStart != nil {
			r.SegmentEnd = instantPtr(*rows[n].SegmentStart)
		}
		next[r.VideoID] = i
	}

	for i := range rows {
		r := &rows[i]
		if r.SegmentStart == nil && r.SceneStart != nil {
			r.SegmentStart = instantPtr(*r.SceneStart)
		}
		if r.SegmentEnd == nil && r.SceneEnd != nil {
			r.SegmentEnd = instantPtr(*r.SceneEnd)
		}
	}
}

func instantPtr(v types.Instant) *types.Instant { return &v }
