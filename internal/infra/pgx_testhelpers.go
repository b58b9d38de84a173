package infra

import (
	"github.com/jackc/pgx/v5"
)

// SimpleRow adapts a scan function to the pgx.Row interface so tests can
// script query results without a live database.
type SimpleRow struct {
	scan func(dest ...any) error
}

func NewSimpleRow(scanner func(dest ...any) error) SimpleRow {
	return SimpleRow{scan: scanner}
}

// NoRow returns a row whose Scan always reports pgx.ErrNoRows.
func NoRow() SimpleRow {
	return SimpleRow{}
}

func (r SimpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}
