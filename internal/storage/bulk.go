package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBulkBackend keeps large or long-lived records in bulk_records.
// The table is created by the migrations.
type PostgresBulkBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBulkBackend(pool *pgxpool.Pool) *PostgresBulkBackend {
	return &PostgresBulkBackend{pool: pool}
}

func (b *PostgresBulkBackend) Name() string { return "postgres" }
func (b *PostgresBulkBackend) Kind() Kind   { return KindBulk }

func (b *PostgresBulkBackend) Probe(ctx context.Context) error {
	if err := b.pool.Ping(ctx); err != nil {
		return err
	}
	_, err := b.pool.Exec(ctx, `SELECT 1 FROM bulk_records LIMIT 1`)
	return err
}

func (b *PostgresBulkBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := b.pool.QueryRow(ctx, `SELECT data FROM bulk_records WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (b *PostgresBulkBackend) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO bulk_records (key, data, timestamp)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE
		 SET data = EXCLUDED.data, timestamp = EXCLUDED.timestamp`,
		key, string(value), time.Now().UnixMilli(),
	)
	return err
}

func (b *PostgresBulkBackend) Delete(ctx context.Context, key string) error {
	_, err := b.pool.Exec(ctx, `DELETE FROM bulk_records WHERE key = $1`, key)
	return err
}

const sqliteBulkSchema = `CREATE TABLE IF NOT EXISTS bulk_records (
	key       TEXT PRIMARY KEY,
	data      TEXT NOT NULL,
	timestamp INTEGER NOT NULL
)`

// SQLiteBulkBackend is the single-node variant of PostgresBulkBackend.
type SQLiteBulkBackend struct {
	db *sql.DB
}

func NewSQLiteBulkBackend(db *sql.DB) *SQLiteBulkBackend {
	return &SQLiteBulkBackend{db: db}
}

func (b *SQLiteBulkBackend) Name() string { return "sqlite" }
func (b *SQLiteBulkBackend) Kind() Kind   { return KindBulk }

// Probe also ensures the table exists.
func (b *SQLiteBulkBackend) Probe(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, sqliteBulkSchema)
	return err
}

func (b *SQLiteBulkBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := b.db.QueryRowContext(ctx, `SELECT data FROM bulk_records WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (b *SQLiteBulkBackend) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO bulk_records (key, data, timestamp) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, timestamp = excluded.timestamp`,
		key, string(value), time.Now().UnixMilli(),
	)
	return err
}

func (b *SQLiteBulkBackend) Delete(ctx context.Context, key string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM bulk_records WHERE key = ?`, key)
	return err
}
