package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/auctiondesk/internal/auth"
	"github.com/dukerupert/auctiondesk/internal/store"
)

// RequireToken validates the bearer token and populates AuthContext.
func RequireToken(sessions *store.SessionStore, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeDetail(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			sess, err := sessions.GetByToken(token)
			if err != nil || sess == nil {
				writeDetail(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			user, err := users.GetByID(sess.UserID)
			if err != nil || user == nil {
				writeDetail(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ac := auth.AuthContext{
				UserID:    user.ID,
				Role:      user.Role,
				SessionID: sess.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeDetail(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeDetail writes the API's {"detail": ...} error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
