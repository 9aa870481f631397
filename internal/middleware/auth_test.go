package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fba70/avica-ugc-sub000/internal/auth"
	"github.com/fba70/avica-ugc-sub000/internal/database"
	"github.com/fba70/avica-ugc-sub000/internal/store"
)

func setupAuthMiddlewareDB(t *testing.T) (*store.SessionStore, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewSessionStore(db), store.NewUserStore(db)
}

func TestRequireAuthNoCookie(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	handler := RequireAuth(ss, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	handler := RequireAuth(ss, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	user, err := us.Create("partner@example.com", "hash", "partner")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sess, err := ss.Create(user.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var gotAC auth.AuthContext
	handler := RequireAuth(ss, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAC, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.UserID != user.ID {
		t.Errorf("UserID = %d, want %d", gotAC.UserID, user.ID)
	}
	if gotAC.Role != "partner" {
		t.Errorf("Role = %q, want partner", gotAC.Role)
	}
	if gotAC.SessionID != sess.ID {
		t.Errorf("SessionID = %d, want %d", gotAC.SessionID, sess.ID)
	}
}

func TestRequireAuthExpiredSession(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	user, err := us.Create("partner@example.com", "hash", "partner")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sess, err := ss.Create(user.ID, -time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	handler := RequireAuth(ss, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequirePartner(t *testing.T) {
	handler := RequirePartner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, Role: "fan"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("fan status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, Role: "partner"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("partner status = %d, want %d", rec.Code, http.StatusOK)
	}
}
