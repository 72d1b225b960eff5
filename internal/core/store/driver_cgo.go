//go:build cgo

package store

// The libsql driver is cgo-only; registering it in a cgo-gated file keeps
// the package compiling under CGO_ENABLED=0, matching the cgo-gated tests.
import _ "github.com/tursodatabase/go-libsql"
