// Package repo is the SQL persistence collaborator. It knows nothing about
// roles or visibility: managers decide what a caller may touch, repo moves
// whole records in and out of SQLite.
package repo

import (
	"database/sql"
	"errors"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
