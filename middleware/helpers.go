package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const (
	claimsContextKey    contextKey = "claims"
	requestIDContextKey contextKey = "request_id"
)

// Имена JWT claims
const (
	jwtClaimSubject = "sub"
)

// SubjectAPIKey - субъект запросов, авторизованных ключом X-API-Key.
const SubjectAPIKey = "api-key"

func withClaims(ctx context.Context, claims jwt.MapClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// GetSubjectFromContext возвращает того, кто выполняет запись: claim "sub"
// токена или SubjectAPIKey.
func GetSubjectFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(claimsContextKey).(jwt.MapClaims)
	if !ok {
		return "", errors.New("claims not found in context or invalid type")
	}

	subClaim, ok := claims[jwtClaimSubject]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimSubject)
	}

	sub, ok := subClaim.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for '%s' claim: expected string, got %T", jwtClaimSubject, subClaim)
	}
	return sub, nil
}

// GetRequestID возвращает идентификатор запроса, выставленный RequestID.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
