package api

import (
	"time"

	"github.com/forPelevin/vidalign/internal/types"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type RunResponse struct {
	ID              string            `json:"id"`
	CreatedAt       string            `json:"created_at"`
	Inputs          map[string]string `json:"inputs"`
	MetadataColumns []string          `json:"metadata_columns"`
	Counts          types.Counts      `json:"counts"`
	Issues          int               `json:"issues"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type RowsResponse struct {
	RunID   string             `json:"run_id"`
	VideoID string             `json:"video_id,omitempty"`
	Rows    []types.AlignedRow `json:"rows"`
}

type IssuesResponse struct {
	RunID  string        `json:"run_id"`
	Issues []types.Issue `json:"issues"`
}

func RunToResponse(r types.RunSummary) RunResponse {
	return RunResponse{
		ID:              r.ID,
		CreatedAt:       r.CreatedAt.UTC().Format(time.RFC3339),
		Inputs:          r.Inputs,
		MetadataColumns: r.MetadataColumns,
		Counts:          r.Counts,
		Issues:          r.Issues,
	}
}
