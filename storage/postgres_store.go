package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type postgresStore struct {
	db     *sql.DB
	bucket string
}

// NewPostgresStore хранит объекты в таблице timer_blobs (см. db.EnsureSchema).
// bucket отделяет наборы объектов внутри одной таблицы.
func NewPostgresStore(db *sql.DB, bucket string) BlobStore {
	return &postgresStore{db: db, bucket: bucket}
}

func (s *postgresStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	const query = `
		INSERT INTO timer_blobs (bucket, key, content_type, data, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (bucket, key)
		DO UPDATE SET content_type = EXCLUDED.content_type, data = EXCLUDED.data, updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, s.bucket, key, contentType, data); err != nil {
		return fmt.Errorf("failed to upsert blob (bucket: %s, key: %s): %w", s.bucket, key, err)
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT data FROM timer_blobs WHERE bucket = $1 AND key = $2`

	var data []byte
	err := s.db.QueryRowContext(ctx, query, s.bucket, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to select blob (bucket: %s, key: %s): %w", s.bucket, key, err)
	}
	return data, nil
}

func (s *postgresStore) Match(ctx context.Context, pattern string, max int) ([]string, error) {
	if max <= 0 {
		return []string{}, nil
	}
	const query = `
		SELECT key FROM timer_blobs
		WHERE bucket = $1 AND key LIKE $2 ESCAPE '\'
		ORDER BY key`

	rows, err := s.db.QueryContext(ctx, query, s.bucket, escapeLike(literalPrefix(pattern))+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs (bucket: %s, pattern: %s): %w", s.bucket, pattern, err)
	}
	defer rows.Close()

	keys := make([]string, 0, max)
	for rows.Next() && len(keys) < max {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan blob key: %w", err)
		}
		if matchKey(pattern, key) {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blob keys: %w", err)
	}
	return keys, nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
