// Package authmw provides HTTP middleware for shared access token
// authentication.
package authmw

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Detail messages written on rejection.
const (
	MissingToken = "No authorization token provided"
	InvalidToken = "Invalid access token"
)

// BearerToken returns middleware that accepts requests whose Authorization
// header carries the expected token, either as "<scheme> <token>" or as the
// bare token. Comparison is constant-time.
func BearerToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				Deny(w, MissingToken)
				return
			}
			if !Equal(TokenFromHeader(auth), token) {
				Deny(w, InvalidToken)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromHeader extracts the token from an Authorization header value.
func TokenFromHeader(auth string) string {
	if _, tok, ok := strings.Cut(auth, " "); ok {
		return tok
	}
	return auth
}

// Equal reports whether got matches want in constant time. An empty want
// never matches.
func Equal(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// Deny writes a 401 with a JSON detail message.
func Deny(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
