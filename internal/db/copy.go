package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyRows loads rows into table with COPY and fails unless every row lands.
// Each row must have one value per column.
func CopyRows(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return eris.Errorf("db: %s row %d has %d values for %d columns", table, i, len(row), len(columns))
		}
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	if int(n) != len(rows) {
		return eris.Errorf("db: copied %d of %d rows into %s", n, len(rows), table)
	}
	return nil
}
