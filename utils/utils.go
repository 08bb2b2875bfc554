package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const BcryptCost = 12

// writeKeyBytes - длина случайного ключа записи до кодирования в base64.
const writeKeyBytes = 32

// HashKey хэширует ключ записи для TIMER_WRITE_KEY_HASH.
func HashKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), BcryptCost)
	return string(bytes), err
}

func CheckKey(key, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	return err == nil
}

// GenerateKey создаёт случайный ключ записи, пригодный для заголовка X-API-Key.
func GenerateKey() (string, error) {
	buf := make([]byte, writeKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
