package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/schema-engine/internal/db"
	"github.com/sells-group/schema-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var resultColumns = []string{"id", "kind", "label", "summary", "payload", "created_at"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS results (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind       TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	summary    TEXT NOT NULL DEFAULT '',
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_results_kind ON results(kind);
CREATE INDEX IF NOT EXISTS idx_results_label ON results(label);
CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, rec *model.ResultRecord) error {
	if err := prepare(rec); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO results (id, kind, label, summary, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, string(rec.Kind), rec.Label, rec.Summary, []byte(rec.Payload), rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert result %s", rec.ID)
}

// SaveResults bulk-loads records with COPY.
func (s *PostgresStore) SaveResults(ctx context.Context, recs []*model.ResultRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		if err := prepare(rec); err != nil {
			return err
		}
		rows = append(rows, []any{rec.ID, string(rec.Kind), rec.Label, rec.Summary, []byte(rec.Payload), rec.CreatedAt})
	}
	return eris.Wrap(db.CopyRows(ctx, s.pool, "results", resultColumns, rows), "postgres: save results")
}

func (s *PostgresStore) GetResult(ctx context.Context, id string) (*model.ResultRecord, error) {
	rec, err := scanPGResult(s.pool.QueryRow(ctx,
		`SELECT id, kind, label, summary, payload, created_at FROM results WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get result %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get result %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.ResultRecord, error) {
	query := `SELECT id, kind, label, summary, payload, created_at FROM results WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.Label != "" {
		query += fmt.Sprintf(` AND label = $%d`, argIdx)
		args = append(args, filter.Label)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, limitOf(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []model.ResultRecord
	for rows.Next() {
		rec, err := scanPGResult(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

func scanPGResult(row pgx.Row) (*model.ResultRecord, error) {
	var (
		rec     model.ResultRecord
		kind    string
		payload []byte
	)
	if err := row.Scan(&rec.ID, &kind, &rec.Label, &rec.Summary, &payload, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Kind = model.ResultKind(kind)
	rec.Payload = payload
	return &rec, nil
}
