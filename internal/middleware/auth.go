package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lunchbox-market/order-composer/internal/config"
)

type contextKey string

const (
	buyerIDKey contextKey = "buyerID"
	tokenKey   contextKey = "token"
)

var (
	errMissingToken = errors.New("missing authorization header")
	errTokenFormat  = errors.New("invalid authorization format, use 'Bearer <token>'")
	errInvalidToken = errors.New("invalid token")
)

// JWTAuth validates the storefront's HS256 bearer token and puts the buyer id
// and the raw token into the request context. The raw token is forwarded to
// the backend on the buyer's behalf.
func JWTAuth(cfg config.AuthConfig) func(next http.Handler) http.Handler {
	secret := []byte(cfg.JWTSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				writeUnauthorized(w, err)
				return
			}

			buyerID, err := parseBuyerID(raw, secret)
			if err != nil {
				writeUnauthorized(w, err)
				return
			}

			if rec, ok := w.(buyerRecorder); ok {
				rec.recordBuyer(buyerID)
			}
			ctx := context.WithValue(r.Context(), buyerIDKey, buyerID)
			ctx = context.WithValue(ctx, tokenKey, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errTokenFormat
	}
	return parts[1], nil
}

func parseBuyerID(raw string, secret []byte) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidToken
	}
	// older tokens carry the id under "sub"
	for _, key := range []string{"userID", "sub"} {
		if id, _ := claims[key].(string); id != "" {
			return id, nil
		}
	}
	return "", errInvalidToken
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// BuyerID returns the authenticated buyer, or "" outside JWTAuth.
func BuyerID(ctx context.Context) string {
	id, _ := ctx.Value(buyerIDKey).(string)
	return id
}

// Token returns the raw bearer token of the request.
func Token(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// WithBuyer is used by tests and internal callers to build an authenticated
// context without a token round trip.
func WithBuyer(ctx context.Context, buyerID, token string) context.Context {
	ctx = context.WithValue(ctx, buyerIDKey, buyerID)
	return context.WithValue(ctx, tokenKey, token)
}
