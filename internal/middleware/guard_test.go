package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouteGuard_IsProtected(t *testing.T) {
	g := NewRouteGuard("", nil)

	tests := []struct {
		path string
		want bool
	}{
		{"/ai-chat", true},
		{"/ai-chat/", true},
		{"/ai-chat/123", true},
		{"/settings/api-keys", true},
		{"/settings/anything/deep", true},
		{"/publish", true},
		{"/publishing", false},
		{"/ai-chatter", false},
		{"/", false},
		{"/login", false},
		{"/api/chat", false},
	}

	for _, tc := range tests {
		if got := g.IsProtected(tc.path); got != tc.want {
			t.Errorf("IsProtected(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestRouteGuard_Decide(t *testing.T) {
	g := NewRouteGuard("/login", nil)

	tests := []struct {
		name     string
		path     string
		session  string
		user     string
		allow    bool
		redirect string
	}{
		{"public path without cookies", "/", "", "", true, ""},
		{"protected with both cookies", "/editor", "s", "u", true, ""},
		{"protected missing session", "/editor", "", "u", false, "/login?redirect=%2Feditor"},
		{"protected missing user", "/articles/42", "s", "", false, "/login?redirect=%2Farticles%2F42"},
		{"protected missing both", "/settings/wechat", "", "", false, "/login?redirect=%2Fsettings%2Fwechat"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := g.Decide(tc.path, tc.session, tc.user)
			if d.Allow != tc.allow {
				t.Fatalf("expected allow=%v, got %v", tc.allow, d.Allow)
			}
			if d.Redirect != tc.redirect {
				t.Fatalf("expected redirect %q, got %q", tc.redirect, d.Redirect)
			}
		})
	}
}

func TestRouteGuard_Middleware(t *testing.T) {
	g := NewRouteGuard("/login", nil)
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ai-chat?id=abc", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "s"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected status %d, got %d", http.StatusTemporaryRedirect, rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login?redirect=%2Fai-chat" {
		t.Fatalf("unexpected location %q", loc)
	}

	req = httptest.NewRequest(http.MethodGet, "/ai-chat", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "s"})
	req.AddCookie(&http.Cookie{Name: UserCookie, Value: "u"})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}
