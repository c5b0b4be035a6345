// Package repository holds the SQL stores used by the demo backend and the
// legacy entry cache.  Sentinel errors let handlers choose HTTP codes
// without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.  Handlers translate
// it into 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with an existing row.
// Handlers translate it into 409.
var ErrConflict = errors.New("conflict")

// isUniqueViolation recognizes duplicate-key errors from both drivers:
// MySQL error 1062 and SQLite's "UNIQUE constraint failed".
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
