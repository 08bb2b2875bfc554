// Command hashkey генерирует ключ записи таймеров и его bcrypt-хэш
// для переменной TIMER_WRITE_KEY_HASH.
//
//	go run ./cmd/hashkey            # случайный ключ
//	go run ./cmd/hashkey -key=...   # хэш существующего ключа
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Dosada05/tournament-timer/utils"
)

func main() {
	key := flag.String("key", "", "existing key to hash; a random one is generated when empty")
	flag.Parse()

	if *key == "" {
		generated, err := utils.GenerateKey()
		if err != nil {
			slog.Error("failed to generate key", slog.Any("error", err))
			os.Exit(1)
		}
		*key = generated
		fmt.Printf("X-API-Key: %s\n", *key)
	}

	hash, err := utils.HashKey(*key)
	if err != nil {
		slog.Error("failed to hash key", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("TIMER_WRITE_KEY_HASH=%s\n", hash)
}
