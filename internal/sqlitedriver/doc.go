// Package sqlitedriver registers a SQLite database/sql driver under the name
// "sqlite3". When built with CGO it uses go-sqlcipher which provides SQLCipher
// encryption. Without CGO it falls back to the pure-Go modernc.org/sqlite
// driver, functional but without encryption support.
//
// Besides registration the package exposes ErrorCode, which extracts the
// extended SQLite result code from whichever driver is active.
//
// Import this package for its side effects only, or call ErrorCode:
//
//	import _ "github.com/teradata-labs/dbkit/internal/sqlitedriver"
package sqlitedriver

// DriverName is the database/sql driver name both builds register.
const DriverName = "sqlite3"

// PrimaryCode reduces an extended SQLite result code to its primary code.
func PrimaryCode(extended int) int {
	return extended & 0xff
}
