package database

import (
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// Mock pools stand in for *pgxpool.Pool wherever a DBTX is accepted.
var _ DBTX = (pgxmock.PgxPoolIface)(nil)

// NewMockPool returns a pgxmock pool for repository tests. Callers should
// close it and check ExpectationsWereMet when the test ends.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool()
}
