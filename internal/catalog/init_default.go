//go:build !(sqlite_vec && cgo)

package catalog

import (
	_ "modernc.org/sqlite"
)

// The default build uses the pure-Go driver; nearest-chunk queries run
// the brute-force cosine scan.
const driverName = "sqlite"
