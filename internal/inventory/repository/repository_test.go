package repository_test

import (
	"database/sql"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
}

func errNoRows() error {
	return sql.ErrNoRows
}
