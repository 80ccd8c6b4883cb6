// Package capability defines what happens over an authenticated
// client.  Each Capability encapsulates a single behaviour (hold a
// session open, launch an application, etc.) and operates on a
// client.Client rather than a raw connection, which keeps capabilities
// testable and decoupled from transport details.
package capability

import (
	"context"

	"rcpc/client"
)

// Capability runs one behaviour over a Ready client.  Implementations
// include holding a session open (Hold) and launching a remote
// application (Launch).
type Capability interface {
	// Handle runs the capability against c.  It blocks until the work
	// is done, the connection is lost or the context is cancelled.
	Handle(ctx context.Context, c *client.Client) error
}
