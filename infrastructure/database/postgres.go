package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_top_ups (
	correlation_id  TEXT PRIMARY KEY,
	phone_number    TEXT        NOT NULL,
	raw_number      TEXT        NOT NULL,
	amount          NUMERIC(12,2) NOT NULL CHECK (amount > 0),
	currency_code   CHAR(3)     NOT NULL,
	status          TEXT        NOT NULL,
	decline_reason  TEXT        NOT NULL DEFAULT '',
	failure_reason  TEXT        NOT NULL DEFAULT '',
	confirmation    TEXT        NOT NULL DEFAULT '',
	attempts        INTEGER     NOT NULL DEFAULT 0,
	last_sim_swap_at TIMESTAMPTZ NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	expires_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_top_ups_expires_at ON pending_top_ups (expires_at);
`

func NewPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL must be set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(time.Second * 15)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("Connected to PostgreSQL!")

	return db, nil
}
