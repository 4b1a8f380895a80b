//go:build sqlite_vec && cgo

package catalog

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// The sqlite_vec build uses the cgo driver: vec.Auto() registers the
// extension through sqlite3_auto_extension, which only connections
// opened by the C library pick up.
const driverName = "sqlite3"

func init() {
	vec.Auto()
	vecAvailable = true
}
