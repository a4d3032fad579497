// Package repository holds the MySQL-backed stores. The sentinel errors below
// are shared with the in-memory store so the service layer can tell failure
// scenarios apart without knowing which backend it talks to.
package repository

import (
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// ErrEmailExists is returned when an insert hits the unique index on
// authentication.email. Handlers translate it into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
