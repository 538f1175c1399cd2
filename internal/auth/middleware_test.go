package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// okHandler records whether it ran and what user it saw.
type okHandler struct {
	called bool
	userID string
}

func (h *okHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.userID, _ = UserIDFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func TestRequireAuth_ValidToken(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate("user-123")

	inner := &okHandler{}
	handler := RequireAuth(ts)(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !inner.called {
		t.Fatal("inner handler never ran")
	}
	if inner.userID != "user-123" {
		t.Errorf("userID in context = %q, want user-123", inner.userID)
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	ts := newTestTokenService(t)
	expired, _ := ts.GenerateWithDuration("user-123", -1)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired token", "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &okHandler{}
			handler := RequireAuth(ts)(inner)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rr.Code)
			}
			if inner.called {
				t.Error("inner handler ran despite failed auth")
			}
		})
	}
}

func TestOptionalAuth_AnonymousPassesThrough(t *testing.T) {
	ts := newTestTokenService(t)

	inner := &okHandler{}
	handler := OptionalAuth(ts)(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/listings/hotzips", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if inner.userID != "" {
		t.Errorf("anonymous request carried userID %q", inner.userID)
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id, ok := UserIDFromContext(req.Context()); ok || id != "" {
		t.Errorf("UserIDFromContext() = (%q, %v), want empty", id, ok)
	}
}
