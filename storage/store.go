package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrNotFound возвращается, когда объекта с таким ключом нет в бакете.
var ErrNotFound = errors.New("object not found")

// DefaultBucket - бакет, в котором хранятся документы таймеров.
const DefaultBucket = "bpt-timer"

// BlobStore - хранилище байтовых объектов по строковому ключу внутри одного бакета.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get возвращает ErrNotFound, если ключа нет.
	Get(ctx context.Context, key string) ([]byte, error)

	// Match возвращает до max ключей, подходящих под glob-шаблон (*, ?, [...]).
	// Пустой результат - не ошибка.
	Match(ctx context.Context, pattern string, max int) ([]string, error)

	Ping(ctx context.Context) error
}

// literalPrefix возвращает часть шаблона до первого метасимвола glob.
// Используется бэкендами, умеющими фильтровать только по префиксу.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

func matchKey(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
