package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/client/migrations"
	"github.com/dmitrijs2005/birdwatch/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

const deleteChunk = 500

// SQLiteBackend is the primary tier: one table per collection with an
// indexed idx column.
type SQLiteBackend struct {
	db *sql.DB
}

func NewSQLiteBackend(db *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

// RunMigrations creates the collection tables and their indexes.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// OpenSQLite opens dsn, migrates it, and probes every collection. Any failure
// means the primary tier is not usable on this device.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	b := NewSQLiteBackend(db)
	for _, c := range Collections {
		if _, err := b.GetAll(ctx, c, ""); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("probe %s: %w", c, err)
		}
	}
	return b, nil
}

func tableFor(c Collection) (string, error) {
	switch c {
	case Usernames, Signatures, Sightings, Chat:
		return string(c), nil
	default:
		return "", fmt.Errorf("unknown collection %q", string(c))
	}
}

func (b *SQLiteBackend) Put(ctx context.Context, c Collection, rec Record) (int64, error) {
	table, err := tableFor(c)
	if err != nil {
		return 0, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if rec.ID == 0 {
		res, err := b.db.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (idx, body, created_at) VALUES (?, ?, ?)`, table),
			rec.Index, rec.Body, rec.CreatedAt.UnixNano())
		if err != nil {
			return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read id for %s: %w", table, err)
		}
		return id, nil
	}

	_, err = b.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, idx, body, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET idx = excluded.idx, body = excluded.body, created_at = excluded.created_at
	`, table), rec.ID, rec.Index, rec.Body, rec.CreatedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to upsert %s[%d]: %w", table, rec.ID, err)
	}
	return rec.ID, nil
}

func (b *SQLiteBackend) GetAll(ctx context.Context, c Collection, index string) ([]Record, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, idx, body, created_at FROM %s`, table)
	var args []any
	if index != "" {
		query += ` WHERE idx = ?`
		args = append(args, index)
	}
	query += ` ORDER BY id`

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var rec Record
		var created int64
		if err := rows.Scan(&rec.ID, &rec.Index, &rec.Body, &created); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		rec.CreatedAt = time.Unix(0, created).UTC()
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", table, err)
	}
	return result, nil
}

// Delete removes ids in one transaction, chunked to stay under the
// bound-parameter limit.
func (b *SQLiteBackend) Delete(ctx context.Context, c Collection, ids []int64) error {
	table, err := tableFor(c)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	return dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for start := 0; start < len(ids); start += deleteChunk {
			end := min(start+deleteChunk, len(ids))
			chunk := ids[start:end]

			args := make([]any, len(chunk))
			for i, id := range chunk {
				args[i] = id
			}
			q := fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, table, dbx.Placeholders(len(chunk)))
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table, err)
			}
		}
		return nil
	})
}

func (b *SQLiteBackend) Clear(ctx context.Context, c Collection) error {
	table, err := tableFor(c)
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
