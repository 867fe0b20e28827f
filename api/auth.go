package api

import (
	"context"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"taglink/config"
)

type ctxKey int

const roleKey ctxKey = iota

// HashPassword generates a bcrypt hash of the password for the users list.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// checkPassword verifies a password against a bcrypt hash.
func checkPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// isAdmin returns true if the role may write. An empty role is admin.
func isAdmin(role string) bool {
	return role == config.RoleAdmin || role == ""
}

// basicAuth checks HTTP basic credentials against users. With no users
// configured every request is let through as admin.
func basicAuth(users []config.WebUser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(users) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			var user *config.WebUser
			for i := range users {
				if users[i].Username == username {
					user = &users[i]
					break
				}
			}
			if !ok || user == nil || !checkPassword(password, user.PasswordHash) {
				logAPI("auth failed for %q from %s", username, r.RemoteAddr)
				w.Header().Set("WWW-Authenticate", `Basic realm="taglink"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), roleKey, user.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireAdmin rejects requests whose authenticated role may not write.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value(roleKey).(string)
		if !isAdmin(role) {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
