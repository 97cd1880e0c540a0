package types

import "time"

// RunSummary describes one stored alignment run.
type RunSummary struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Inputs    map[string]string `json:"inputs"`
	// MetadataColumns keeps the caller's descriptive column order.
	MetadataColumns []string `json:"metadata_columns"`
	Counts          Counts   `json:"counts"`
	Issues          int      `json:"issues"`
}
