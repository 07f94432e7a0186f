package ports

import (
	"context"

	"github.com/calder/phishscan/internal/core"
)

// EmailFilter is a delivery-side frontend for the scan pipeline: it
// accepts raw RFC 5322 messages from some transport and routes them
// through the scanner.
type EmailFilter interface {
	// ProcessEmail parses and scans one raw message.
	ProcessEmail(ctx context.Context, raw []byte) (*core.ScanVerdict, error)

	// Start starts the filter's transport, if it has one.
	Start() error

	// Stop shuts the filter down.
	Stop() error
}
