// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus classifies a finished run.
type RunStatus string

const (
	// StatusComplete means every chunk succeeded and the output holds
	// the full transformed range.
	StatusComplete RunStatus = "complete"
	// StatusPartial means the output was written but one or more chunks
	// failed, so their pages are missing from it.
	StatusPartial RunStatus = "partial"
	// StatusFailed means no output document was produced.
	StatusFailed RunStatus = "failed"
)

// RunReport is the full record of one run: what was asked, how the range
// was split, and how every chunk fared. The run command prints it and
// the history ledger persists it.
type RunReport struct {
	RunID      string          `json:"run_id"`
	Input      string          `json:"input"`
	Output     string          `json:"output"`
	TotalPages int             `json:"total_pages"`
	Range      PageRange       `json:"range"`
	Workers    int             `json:"workers"`
	Chain      []TransformSpec `json:"chain,omitempty"`
	Status     RunStatus       `json:"status"`
	Chunks     []ChunkResult   `json:"chunks,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
	Started    time.Time       `json:"started"`
	Finished   time.Time       `json:"finished"`
}

// FailedChunks returns the chunks that ended in failure, in ID order.
func (r *RunReport) FailedChunks() []ChunkResult {
	var failed []ChunkResult
	for _, c := range r.Chunks {
		if c.Failed() {
			failed = append(failed, c)
		}
	}
	return failed
}

// Succeeded returns the number of chunks that completed.
func (r *RunReport) Succeeded() int {
	return len(r.Chunks) - len(r.FailedChunks())
}

// Duration returns the wall-clock time of the whole run.
func (r *RunReport) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
