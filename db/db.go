package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Import postgres driver
)

// Схема для бэкенда хранения postgres: одна строка на объект бакета.
const timerBlobsSchema = `
CREATE TABLE IF NOT EXISTS timer_blobs (
	bucket       TEXT        NOT NULL,
	key          TEXT        NOT NULL,
	content_type TEXT        NOT NULL,
	data         BYTEA       NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (bucket, key)
)`

// Connect открывает пул соединений и проверяет его ping-ом за timeout.
func Connect(dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	// Запросы таймера короткие, большой пул не нужен
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("failed to ping database within %v: %w (close: %v)", timeout, err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database within %v: %w", timeout, err)
	}

	return db, nil
}

// EnsureSchema создаёт таблицу timer_blobs, если её ещё нет.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, timerBlobsSchema); err != nil {
		return fmt.Errorf("failed to create timer_blobs table: %w", err)
	}
	return nil
}
