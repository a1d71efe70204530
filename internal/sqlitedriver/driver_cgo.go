//go:build cgo

package sqlitedriver

import (
	"errors"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4" // registers "sqlite3" driver with encryption
)

// EncryptionSupported indicates whether the active SQLite driver supports
// SQLCipher encryption (PRAGMA key). True when built with CGO.
const EncryptionSupported = true

// ErrorCode returns the extended result code carried by a go-sqlcipher error.
func ErrorCode(err error) (int, bool) {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return int(se.ExtendedCode), true
	}
	var sp *sqlite3.Error
	if errors.As(err, &sp) && sp != nil {
		return int(sp.ExtendedCode), true
	}
	return 0, false
}
