package inspection

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/orderrisk/internal/model"
)

// Pool is the subset of pgxpool.Pool the postgres cache uses.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresCache stores the snapshot in PostgreSQL, bulk loading records
// with COPY.
type PostgresCache struct {
	pool    Pool
	closeFn func()
}

// NewPostgresCache connects to connString and creates the schema if needed.
func NewPostgresCache(ctx context.Context, connString string) (*PostgresCache, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	c := &PostgresCache{pool: pool, closeFn: pool.Close}
	if err := c.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS inspection_snapshots (
	id           UUID PRIMARY KEY,
	fetched_at   TIMESTAMPTZ NOT NULL,
	record_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS inspection_records (
	snapshot_id           UUID NOT NULL REFERENCES inspection_snapshots(id) ON DELETE CASCADE,
	seq                   INTEGER NOT NULL,
	camis                 TEXT NOT NULL,
	dba                   TEXT NOT NULL DEFAULT '',
	boro                  TEXT NOT NULL DEFAULT '',
	cuisine_description   TEXT NOT NULL DEFAULT '',
	inspection_date       DATE,
	action                TEXT NOT NULL DEFAULT '',
	violation_code        TEXT NOT NULL DEFAULT '',
	violation_description TEXT NOT NULL DEFAULT '',
	critical              BOOLEAN NOT NULL DEFAULT FALSE,
	grade                 TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (snapshot_id, seq)
);
`

var recordColumns = []string{
	"snapshot_id", "seq", "camis", "dba", "boro", "cuisine_description", "inspection_date",
	"action", "violation_code", "violation_description", "critical", "grade",
}

// Migrate creates the cache tables.
func (c *PostgresCache) Migrate(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, postgresSchema); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the pool.
func (c *PostgresCache) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Load returns the saved snapshot, or ErrCacheMiss.
func (c *PostgresCache) Load(ctx context.Context) (*Snapshot, error) {
	var (
		rawID     string
		fetchedAt time.Time
	)
	err := c.pool.QueryRow(ctx,
		`SELECT id::text, fetched_at FROM inspection_snapshots ORDER BY fetched_at DESC LIMIT 1`,
	).Scan(&rawID, &fetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load snapshot")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: snapshot id %q", rawID)
	}

	rows, err := c.pool.Query(ctx,
		`SELECT camis, dba, boro, cuisine_description,
		        COALESCE(to_char(inspection_date, 'YYYY-MM-DD'), ''), action,
		        violation_code, violation_description, critical, grade
		 FROM inspection_records WHERE snapshot_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load records")
	}
	defer rows.Close()

	var records []model.InspectionRecord
	for rows.Next() {
		var (
			r                  model.InspectionRecord
			boro, gr, inspDate string
		)
		if err := rows.Scan(&r.CAMIS, &r.DBA, &boro, &r.CuisineDescription, &inspDate, &r.Action,
			&r.ViolationCode, &r.ViolationDescription, &r.Critical, &gr); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		r.Boro = model.Borough(boro)
		r.Grade = model.Grade(gr)
		if inspDate != "" {
			d, err := time.Parse(time.DateOnly, inspDate)
			if err != nil {
				return nil, eris.Wrapf(err, "postgres: inspection date %q", inspDate)
			}
			r.InspectionDate = d
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate records")
	}

	return restore(id, fetchedAt, records), nil
}

// Save replaces the stored snapshot with s in one transaction.
func (c *PostgresCache) Save(ctx context.Context, s *Snapshot) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM inspection_snapshots`); err != nil {
		return eris.Wrap(err, "postgres: clear cache")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO inspection_snapshots (id, fetched_at, record_count) VALUES ($1, $2, $3)`,
		s.ID, s.FetchedAt, len(s.Records),
	); err != nil {
		return eris.Wrap(err, "postgres: insert snapshot")
	}

	rows := make([][]any, len(s.Records))
	for i, r := range s.Records {
		var inspected *time.Time
		if !r.InspectionDate.IsZero() {
			d := r.InspectionDate
			inspected = &d
		}
		rows[i] = []any{
			s.ID, i, r.CAMIS, r.DBA, string(r.Boro), r.CuisineDescription, inspected,
			r.Action, r.ViolationCode, r.ViolationDescription, r.Critical, string(r.Grade),
		}
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"inspection_records"}, recordColumns, pgx.CopyFromRows(rows)); err != nil {
			return eris.Wrap(err, "postgres: copy records")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit")
	}
	return nil
}
