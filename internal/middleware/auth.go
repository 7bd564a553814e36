package middleware

import (
	"net/http"
	"strings"

	"github.com/larderhq/larder/internal/auth"
	"github.com/larderhq/larder/internal/store"
)

const SessionCookieName = "larder_session"

// RequireAuth authenticates the request from either the session cookie or a
// Bearer token and populates AuthContext. Unauthenticated requests get 401.
func RequireAuth(sessions *store.SessionStore, tokens *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ac, ok := authenticate(r, sessions, tokens); ok {
				ctx := auth.WithAuth(r.Context(), ac)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func authenticate(r *http.Request, sessions *store.SessionStore, tokens *auth.TokenIssuer) (auth.AuthContext, bool) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		userID, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err == nil {
			return auth.AuthContext{UserID: userID}, true
		}
		return auth.AuthContext{}, false
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return auth.AuthContext{}, false
	}
	sess, err := sessions.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		return auth.AuthContext{}, false
	}
	return auth.AuthContext{UserID: sess.UserID, SessionID: sess.ID}, true
}
