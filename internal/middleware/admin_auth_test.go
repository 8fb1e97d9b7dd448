package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
)

func protected() http.Handler {
	return AdminAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAdminAuthBasic(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("TELEGRAM_TOKEN", "")

	tests := []struct {
		name string
		user string
		pass string
		want int
	}{
		{"valid credentials", "admin", "hunter2", http.StatusOK},
		{"wrong password", "admin", "nope", http.StatusUnauthorized},
		{"wrong user", "root", "hunter2", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/batches", nil)
			cred := base64.StdEncoding.EncodeToString([]byte(tt.user + ":" + tt.pass))
			req.Header.Set("Authorization", "Basic "+cred)
			w := httptest.NewRecorder()
			protected().ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAdminAuthNoCredentials(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "hunter2")

	req := httptest.NewRequest(http.MethodGet, "/batches", nil)
	w := httptest.NewRecorder()
	protected().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate challenge")
	}
}

func TestAdminAuthEmptyPasswordNeverMatches(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "")

	req := httptest.NewRequest(http.MethodGet, "/batches", nil)
	cred := base64.StdEncoding.EncodeToString([]byte("admin:"))
	req.Header.Set("Authorization", "Basic "+cred)
	w := httptest.NewRecorder()
	protected().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with unset password, got %d", w.Code)
	}
}

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		name     string
		userID   int64
		adminIDs string
		want     bool
	}{
		{"listed", 42, "42", true},
		{"listed among others", 42, "7, 42 ,99", true},
		{"not listed", 43, "7,42,99", false},
		{"empty list", 42, "", false},
		{"garbage entry ignored", 42, "abc,42", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAdmin(tt.userID, tt.adminIDs); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
