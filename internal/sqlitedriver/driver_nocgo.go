//go:build !cgo

package sqlitedriver

import (
	"database/sql"
	"errors"

	"modernc.org/sqlite"
)

func init() {
	sql.Register(DriverName, &sqlite.Driver{})
}

// EncryptionSupported indicates whether the active SQLite driver supports
// SQLCipher encryption (PRAGMA key). False when built without CGO.
const EncryptionSupported = false

// ErrorCode returns the extended result code carried by a modernc.org/sqlite error.
func ErrorCode(err error) (int, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) && se != nil {
		return se.Code(), true
	}
	return 0, false
}
