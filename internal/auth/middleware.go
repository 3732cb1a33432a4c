package auth

import (
	"net/http"
	"os"
	"strings"
)

// StaffAuthMiddleware guards the staff endpoints with a shared bearer
// token from STAFF_API_TOKEN. Full user authentication is out of scope;
// this is deployment config, not an account system.
func StaffAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		staffToken := os.Getenv("STAFF_API_TOKEN")
		if staffToken == "" {
			http.Error(w, "Staff API disabled: STAFF_API_TOKEN not set", http.StatusServiceUnavailable)
			return
		}
		token := r.Header.Get("Authorization")
		if !strings.HasPrefix(token, "Bearer ") || strings.TrimPrefix(token, "Bearer ") != staffToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
