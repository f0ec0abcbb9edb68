package pdf

import (
	"context"
	"io"
)

// Provider renders payout documents.
type Provider interface {
	// GenerateStatement renders the statement of one payout request.
	GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error)
}
