// Package middleware holds the chi middleware for request authentication.
package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lifeos/lifeosd/internal/httputil"
)

// ErrInvalidToken is returned when token validation fails
var ErrInvalidToken = errors.New("invalid token")

// CreateToken issues a signed bearer token for a caller that presented the
// correct password.
func CreateToken(secret string, expire time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": "lifeosd",
		"iat": now.Unix(),
		"exp": now.Add(expire).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateJWT validates a bearer token and returns its claims.
func ValidateJWT(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// Auth guards the API routes. A request passes with either the shared
// password in X-Api-Password or a valid bearer token. Everything else gets
// a 401 before any handler runs.
func Auth(password, accessSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password != "" {
				supplied := r.Header.Get("X-Api-Password")
				if supplied != "" && subtle.ConstantTimeCompare([]byte(supplied), []byte(password)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			if accessSecret != "" {
				authHeader := r.Header.Get("Authorization")
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
					if _, err := ValidateJWT(parts[1], accessSecret); err == nil {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			httputil.Unauthorized(w, "")
		})
	}
}
