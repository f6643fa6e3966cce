package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestAuthMiddleware covers the accept and reject paths of Bearer auth.
func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		apiKey    string
		header    string
		wantCode  int
		wantError string
	}{
		{"disabled, no header", "", "", http.StatusOK, ""},
		{"disabled, any header", "", "Bearer whatever", http.StatusOK, ""},
		{"missing header", "secret", "", http.StatusUnauthorized, "authorization required"},
		{"wrong token", "secret", "Bearer wrong-token", http.StatusUnauthorized, "invalid token"},
		{"prefix of token", "secret", "Bearer secre", http.StatusUnauthorized, "invalid token"},
		{"basic scheme", "secret", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "authorization required"},
		{"correct token", "secret", "Bearer secret", http.StatusOK, ""},
		{"lowercase scheme", "secret", "bearer secret", http.StatusOK, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := authMiddleware(tc.apiKey, okHandler)
			req := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, w.Code)
			}
			if tc.wantCode != http.StatusUnauthorized {
				return
			}
			if !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer") {
				t.Errorf("expected a Bearer challenge, got %q", w.Header().Get("WWW-Authenticate"))
			}
			var body errorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.wantError {
				t.Errorf("error: expected %q, got %q", tc.wantError, body.Error)
			}
		})
	}
}

// TestBearerToken verifies the bearerToken extraction helper.
func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
	}{
		{"Bearer mytoken", "mytoken"},
		{"BEARER mytoken", "mytoken"},
		{"Bearer  spaced ", "spaced"},
		{"Basic dXNlcjpwYXNz", ""},
		{"", ""},
		{"Bearer", ""},
		{"token only", ""},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Errorf("header=%q: expected %q, got %q", tc.header, tc.want, got)
		}
	}
}
