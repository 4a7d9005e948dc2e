// Package store persists the fixture API's data in SQLite.
package store

import "errors"

// ErrNotFound is returned by updates and deletes that matched no row.
var ErrNotFound = errors.New("not found")

type scanner interface{ Scan(...any) error }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
