package utils

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const UserKey contextKey = "user"

func GetUserFromContext(r *http.Request) (string, error) {
	subject, ok := r.Context().Value(UserKey).(string)
	if !ok {
		return "", errors.New("user not found in context")
	}
	return subject, nil
}

// AuthMiddleware verifies the bearer token on dashboard routes. Tokens are
// issued by the hosted auth backend; this server only validates them.
func AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Get token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		// Extract the token
		tokenString := strings.Replace(authHeader, "Bearer ", "", 1)

		// Parse and validate the token
		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(os.Getenv("SECRET_KEY")), nil
		})

		if err != nil || !token.Valid {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// AccessCodeMiddleware gates a route behind the shared office access code.
// Only the bcrypt hash of the code lives in the environment.
func AccessCodeMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := os.Getenv("ACCESS_CODE_HASH")
		if hash == "" {
			http.Error(w, "Access code not configured", http.StatusServiceUnavailable)
			return
		}

		code := r.Header.Get("X-Access-Code")
		if code == "" {
			code = r.URL.Query().Get("access_code")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
			http.Error(w, "Invalid access code", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}
