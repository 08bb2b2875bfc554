package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dosada05/tournament-timer/utils"
	"github.com/golang-jwt/jwt/v4"
)

const (
	headerAPIKey        = "X-API-Key"
	headerAuthorization = "Authorization"
	bearerPrefix        = "Bearer "
)

var (
	errMissingCredentials = errors.New("missing credentials")
	errInvalidAPIKey      = errors.New("invalid api key")
)

// WriteAuth описывает, чем можно подтвердить право записи таймера.
// Пустые поля отключают соответствующий способ.
type WriteAuth struct {
	JWTSecret    string
	WriteKeyHash string
}

func (a WriteAuth) Enabled() bool {
	return a.JWTSecret != "" || a.WriteKeyHash != ""
}

// RequireWriteAccess пропускает запрос, если он содержит верный X-API-Key
// или Bearer токен HS256. Если ни один способ не настроен, запросы проходят как есть.
func RequireWriteAccess(auth WriteAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !auth.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := auth.authenticate(r)
			if err != nil {
				slog.WarnContext(r.Context(), "Write access denied",
					slog.String("path", r.URL.Path), slog.Any("error", err))
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func (a WriteAuth) authenticate(r *http.Request) (jwt.MapClaims, error) {
	if key := r.Header.Get(headerAPIKey); key != "" && a.WriteKeyHash != "" {
		if !utils.CheckKey(key, a.WriteKeyHash) {
			return nil, errInvalidAPIKey
		}
		return jwt.MapClaims{jwtClaimSubject: SubjectAPIKey}, nil
	}

	header := r.Header.Get(headerAuthorization)
	if a.JWTSecret == "" || !strings.HasPrefix(header, bearerPrefix) {
		return nil, errMissingCredentials
	}
	return a.parseToken(strings.TrimPrefix(header, bearerPrefix))
}

func (a WriteAuth) parseToken(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
