package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/larderhq/larder/internal/auth"
	"github.com/larderhq/larder/internal/database"
	"github.com/larderhq/larder/internal/store"
)

func setupAuthTest(t *testing.T) (*store.SessionStore, *auth.TokenIssuer, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	user, err := store.NewUserStore(db).Create("owner@example.com", "Owner", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return store.NewSessionStore(db), auth.NewTokenIssuer("test-secret", time.Hour), user.ID
}

func echoUserID(t *testing.T, gotUserID *int64) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotUserID = auth.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthBearer(t *testing.T) {
	sessions, tokens, userID := setupAuthTest(t)

	var gotUserID int64
	handler := RequireAuth(sessions, tokens)(echoUserID(t, &gotUserID))

	token, err := tokens.Issue(userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/lists", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUserID != userID {
		t.Errorf("user id = %d, want %d", gotUserID, userID)
	}
}

func TestRequireAuthBadBearer(t *testing.T) {
	sessions, tokens, _ := setupAuthTest(t)

	var gotUserID int64
	handler := RequireAuth(sessions, tokens)(echoUserID(t, &gotUserID))

	req := httptest.NewRequest(http.MethodGet, "/api/lists", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthCookie(t *testing.T) {
	sessions, tokens, userID := setupAuthTest(t)

	sess, err := sessions.Create(userID, "session-token", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var gotUserID int64
	handler := RequireAuth(sessions, tokens)(echoUserID(t, &gotUserID))

	req := httptest.NewRequest(http.MethodGet, "/api/lists", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUserID != userID {
		t.Errorf("user id = %d, want %d", gotUserID, userID)
	}
}

func TestRequireAuthExpiredSession(t *testing.T) {
	sessions, tokens, userID := setupAuthTest(t)

	sess, err := sessions.Create(userID, "stale-token", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var gotUserID int64
	handler := RequireAuth(sessions, tokens)(echoUserID(t, &gotUserID))

	req := httptest.NewRequest(http.MethodGet, "/api/lists", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthNoCredentials(t *testing.T) {
	sessions, tokens, _ := setupAuthTest(t)

	handler := RequireAuth(sessions, tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/lists", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
