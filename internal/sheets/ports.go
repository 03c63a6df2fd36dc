package sheets

import (
	"context"

	"grana/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryAppender mirrors a confirmed entry to the backup spreadsheet and
	// returns a reference to the written row.
	EntryAppender interface {
		Append(ctx context.Context, e core.Entry) (rowRef string, err error)
	}
)
