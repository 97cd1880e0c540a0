package types

type IssueKind string

const (
	IssueOrphanReference IssueKind = "orphan_reference"
	IssueZeroDenominator IssueKind = "zero_denominator"
)

// Issue is a non-fatal condition found during a run.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	VideoID string    `json:"video_id"`
	Detail  string    `json:"detail"`
}

type Counts struct {
	Scenes               int `json:"scenes"`
	Segments             int `json:"segments"`
	Assigned             int `json:"assigned"`
	Orphans              int `json:"orphans"`
	HallucinatedDropped  int `json:"hallucinated_dropped"`
	HallucinatedRetained int `json:"hallucinated_retained"`
	Videos               int `json:"videos"`
	Rows                 int `json:"rows"`
}

// Report accompanies a successfully produced dataset.
type Report struct {
	Counts Counts  `json:"counts"`
	Issues []Issue `json:"issues"`
}

func (r *Report) Add(kind IssueKind, videoID, detail string) {
	r.Issues = append(r.Issues, Issue{Kind: kind, VideoID: videoID, Detail: detail})
}

// CountByKind returns the number of issues of each kind.
func (r Report) CountByKind() map[IssueKind]int {
	out := make(map[IssueKind]int, 2)
	for _, is := range r.Issues {
		out[is.Kind]++
	}
	return out
}
