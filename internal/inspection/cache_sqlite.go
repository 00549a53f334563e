package inspection

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/orderrisk/internal/model"
)

// SQLiteCache stores the snapshot in a local SQLite file.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens the database at dsn in WAL mode and creates the
// schema if needed.
func NewSQLiteCache(ctx context.Context, dsn string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	return &SQLiteCache{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS inspection_snapshots (
	id           TEXT PRIMARY KEY,
	fetched_at   TEXT NOT NULL,
	record_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS inspection_records (
	snapshot_id           TEXT NOT NULL,
	seq                   INTEGER NOT NULL,
	camis                 TEXT NOT NULL,
	dba                   TEXT NOT NULL DEFAULT '',
	boro                  TEXT NOT NULL DEFAULT '',
	cuisine_description   TEXT NOT NULL DEFAULT '',
	inspection_date       TEXT NOT NULL DEFAULT '',
	action                TEXT NOT NULL DEFAULT '',
	violation_code        TEXT NOT NULL DEFAULT '',
	violation_description TEXT NOT NULL DEFAULT '',
	critical              INTEGER NOT NULL DEFAULT 0,
	grade                 TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (snapshot_id, seq)
);
`

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Load returns the saved snapshot, or ErrCacheMiss.
func (c *SQLiteCache) Load(ctx context.Context) (*Snapshot, error) {
	var id, fetchedAt string
	err := c.db.QueryRowContext(ctx,
		`SELECT id, fetched_at FROM inspection_snapshots ORDER BY fetched_at DESC LIMIT 1`,
	).Scan(&id, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load snapshot")
	}

	sid, err := uuid.Parse(id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: parse snapshot id")
	}
	ts, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: parse fetched_at")
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT camis, dba, boro, cuisine_description, inspection_date, action,
		        violation_code, violation_description, critical, grade
		 FROM inspection_records WHERE snapshot_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load records")
	}
	defer rows.Close() //nolint:errcheck

	var records []model.InspectionRecord
	for rows.Next() {
		var (
			r              model.InspectionRecord
			boro, date, gr string
			critical       int
		)
		if err := rows.Scan(&r.CAMIS, &r.DBA, &boro, &r.CuisineDescription, &date, &r.Action,
			&r.ViolationCode, &r.ViolationDescription, &critical, &gr); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		r.Boro = model.Borough(boro)
		r.Grade = model.Grade(gr)
		r.Critical = critical != 0
		r.InspectionDate = parseStoredDate(date)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate records")
	}

	return restore(sid, ts, records), nil
}

// Save replaces whatever is stored with s.
func (c *SQLiteCache) Save(ctx context.Context, s *Snapshot) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{`DELETE FROM inspection_records`, `DELETE FROM inspection_snapshots`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "sqlite: clear cache")
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO inspection_snapshots (id, fetched_at, record_count) VALUES (?, ?, ?)`,
		s.ID.String(), s.FetchedAt.UTC().Format(time.RFC3339Nano), len(s.Records),
	); err != nil {
		return eris.Wrap(err, "sqlite: insert snapshot")
	}

	ins, err := tx.PrepareContext(ctx,
		`INSERT INTO inspection_records (snapshot_id, seq, camis, dba, boro, cuisine_description,
		 inspection_date, action, violation_code, violation_description, critical, grade)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer ins.Close() //nolint:errcheck

	for i, r := range s.Records {
		critical := 0
		if r.Critical {
			critical = 1
		}
		if _, err := ins.ExecContext(ctx, s.ID.String(), i, r.CAMIS, r.DBA, string(r.Boro),
			r.CuisineDescription, formatStoredDate(r.InspectionDate), r.Action, r.ViolationCode,
			r.ViolationDescription, critical, string(r.Grade)); err != nil {
			return eris.Wrapf(err, "sqlite: insert record %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit")
	}
	return nil
}

func formatStoredDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseStoredDate(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
