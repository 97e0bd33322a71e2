// Package local provides a zero-copy, in-process protocol
// connection.
//
// For tools compiled into the same binary as the core (embedded
// deployments, tests, the CLI against an in-memory substrate) this
// adapter satisfies gaia.Connection with no serialization overhead.
package local

import (
	gaia "github.com/arko05roy/gaia-core"
	"github.com/arko05roy/gaia-core/store"
)

// Compile-time interface check.
var _ gaia.Connection = (*Connection)(nil)

// Connection wraps a core and its substrate as a closable
// connection.
type Connection struct {
	gaia.Core
	st store.Store
}

// NewConnection creates an in-process connection. Close closes the
// underlying substrate.
func NewConnection(core gaia.Core, st store.Store) *Connection {
	return &Connection{Core: core, st: st}
}

// Close closes the substrate.
func (c *Connection) Close() error {
	return c.st.Close()
}
