package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const notifyChannel = "attendance_kv"

// Postgres keeps values in a kv_store table and uses LISTEN/NOTIFY so every
// process sharing the database hears about writes.
type Postgres struct {
	Client  *sql.DB
	connStr string
	logger  *zap.Logger
}

// NewPostgres opens a pooled connection, pings it and ensures the table exists.
func NewPostgres(ctx context.Context, connString string, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_store (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate kv_store: %w", err)
	}
	return &Postgres{Client: db, connStr: connString, logger: logger}, nil
}

// Get returns the value under key.
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := p.Client.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return v, true, nil
}

// Set upserts the value and notifies listeners in the same transaction, so
// the notification is only delivered once the write is visible.
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	tx, err := p.Client.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value); err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, key); err != nil {
		return fmt.Errorf("postgres notify %s: %w", key, err)
	}
	return tx.Commit()
}

// Watch holds a dedicated connection in LISTEN mode for the lifetime of ctx.
func (p *Postgres) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	conn, err := pgx.Connect(ctx, p.connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres listen connect: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("postgres listen: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer conn.Close(context.Background())
		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("postgres listen stopped", zap.Error(err))
				}
				return
			}
			if n.Payload == key {
				notify(out)
			}
		}
	}()
	return out, nil
}

// Ping checks the pool.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.Client.PingContext(ctx)
}

// Close closes the underlying connection.
func (p *Postgres) Close() error {
	if p == nil || p.Client == nil {
		return nil
	}
	return p.Client.Close()
}
