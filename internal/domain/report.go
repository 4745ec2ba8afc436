// Package domain holds the run report shared by the orchestrator, the CLI and
// the persisted report.json.
package domain

import (
	"sort"
	"time"
)

const (
	StatusImported  = "imported"
	StatusConverted = "converted"
	StatusDuplicate = "duplicate"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusPlanned   = "planned"
)

const (
	ErrCodeSourceMissing  = "source_missing"
	ErrCodeOccupied       = "destination_occupied"
	ErrCodeTargetConflict = "target_conflict"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeConvertFailed  = "convert_failed"
)

// RunReport is the stable output of one run.
type RunReport struct {
	RunID  string `json:"run_id"`
	Input  string `json:"input"`
	Output string `json:"output"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Imported  int `json:"imported"`
	Converted int `json:"converted"`
	Duplicate int `json:"duplicate"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Planned   int `json:"planned"`
}

// ItemResult is the outcome for one input file.
type ItemResult struct {
	Src    string `json:"src"`
	Dst    string `json:"dst,omitempty"`
	Kept   string `json:"kept,omitempty"` // the copy that won, for duplicates and skips
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`

	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// Finalize normalizes times to UTC, sorts items by source path and derives
// the summary from the items.
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool { return r.Items[i].Src < r.Items[j].Src })

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusImported:
			s.Imported++
		case StatusConverted:
			s.Converted++
		case StatusDuplicate:
			s.Duplicate++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusPlanned:
			s.Planned++
		}
	}
	r.Summary = s
}
