package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/schema-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS results (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	summary    TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_results_kind ON results(kind);
CREATE INDEX IF NOT EXISTS idx_results_label ON results(label);
CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at);
`

const sqliteInsert = `INSERT INTO results (id, kind, label, summary, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveResult(ctx context.Context, rec *model.ResultRecord) error {
	if err := prepare(rec); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, sqliteInsert,
		rec.ID, string(rec.Kind), rec.Label, rec.Summary, string(rec.Payload), rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert result %s", rec.ID)
}

func (s *SQLiteStore) SaveResults(ctx context.Context, recs []*model.ResultRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, rec := range recs {
		if err := prepare(rec); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID, string(rec.Kind), rec.Label, rec.Summary, string(rec.Payload), rec.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert result %s", rec.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit results")
}

func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*model.ResultRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, label, summary, payload, created_at FROM results WHERE id = ?`, id,
	)
	rec, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get result %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get result %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.ResultRecord, error) {
	query := `SELECT id, kind, label, summary, payload, created_at FROM results WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Label != "" {
		query += ` AND label = ?`
		args = append(args, filter.Label)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limitOf(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ResultRecord
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanResult(row scannable) (*model.ResultRecord, error) {
	var (
		rec     model.ResultRecord
		kind    string
		payload string
		created time.Time
	)
	if err := row.Scan(&rec.ID, &kind, &rec.Label, &rec.Summary, &payload, &created); err != nil {
		return nil, err
	}
	rec.Kind = model.ResultKind(kind)
	rec.Payload = []byte(payload)
	rec.CreatedAt = created.UTC()
	return &rec, nil
}
