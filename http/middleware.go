package http

import (
	"crypto/subtle"
	"net/http"
)

// PasswordMiddleware gates requests behind the shared catalog password,
// accepted either in the X-App-Password header or the password query
// parameter. The comparison is constant time.
func PasswordMiddleware(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-App-Password")
			if got == "" {
				got = r.URL.Query().Get("password")
			}

			if !passwordMatches(password, got) {
				WriteError(w, http.StatusUnauthorized, "Invalid password")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func passwordMatches(want, got string) bool {
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
