package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReport_Finalize(t *testing.T) {
	zone := time.FixedZone("X", 8*3600)
	r := RunReport{
		RunID:      "run-1",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, zone),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, zone),
		Items: []ItemResult{
			{Src: "/in/c.jpg", Status: StatusDuplicate},
			{Src: "/in/a.jpg", Status: StatusImported},
			{Src: "/in/b.heic", Status: StatusConverted},
			{Src: "/in/d.txt", Status: StatusFailed, ErrorCode: ErrCodeIOFailed},
			{Src: "/in/e.jpg", Status: StatusSkipped},
		},
	}

	r.Finalize()

	assert.Equal(t, "/in/a.jpg", r.Items[0].Src)
	assert.Equal(t, "/in/e.jpg", r.Items[4].Src)
	assert.Equal(t, ReportSummary{Imported: 1, Converted: 1, Duplicate: 1, Skipped: 1, Failed: 1}, r.Summary)

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"started_at":"2026-02-09T02:00:00Z"`)
	assert.NotContains(t, string(b), `"dst"`)
}
