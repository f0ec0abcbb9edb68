package domain

import "context"

const RejectionReasonMissingEvidence = "Evidence not provided before the deadline"

// Result summarizes one evidence deadline sweep. Skipped counts requests that
// had evidence and were handed to manual review.
type Result struct {
	RunID     string   `json:"run_id"`
	Processed int      `json:"processed"`
	Rejected  int      `json:"rejected"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

type Service interface {
	// ProcessEvidenceDeadlines settles every request whose evidence window has
	// closed. A failure on one request is recorded and the sweep continues.
	ProcessEvidenceDeadlines(ctx context.Context, limit int) (*Result, error)
}
