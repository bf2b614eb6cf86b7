package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const (
	SessionCookie = "next-auth.session-token"
	UserCookie    = "user_token"
)

// ProtectedPaths lists the page prefixes that need both auth cookies.
var ProtectedPaths = []string{
	"/settings",
	"/settings/wechat",
	"/settings/api-keys",
	"/settings/model-config",
	"/ai-chat",
	"/ai-generator",
	"/articles",
	"/editor",
	"/preview",
	"/publish",
}

// Decision is the outcome of a guard check. Redirect is empty when allowed.
type Decision struct {
	Allow    bool
	Redirect string
}

// RouteGuard gates page requests on the presence of the session and user
// cookies. It holds no per-request state.
type RouteGuard struct {
	paths     []string
	loginPath string
	logger    *zap.Logger
}

func NewRouteGuard(loginPath string, logger *zap.Logger) *RouteGuard {
	if loginPath == "" {
		loginPath = "/login"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteGuard{paths: ProtectedPaths, loginPath: loginPath, logger: logger}
}

// IsProtected reports whether path equals a protected prefix or is nested
// under one. "/publishing" is not under "/publish".
func (g *RouteGuard) IsProtected(path string) bool {
	for _, p := range g.paths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func (g *RouteGuard) Decide(path, sessionToken, userToken string) Decision {
	if !g.IsProtected(path) || (sessionToken != "" && userToken != "") {
		return Decision{Allow: true}
	}
	q := url.Values{}
	q.Set("redirect", path)
	return Decision{Redirect: g.loginPath + "?" + q.Encode()}
}

func (g *RouteGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Decide(r.URL.Path, cookieValue(r, SessionCookie), cookieValue(r, UserCookie))
		if !d.Allow {
			g.logger.Debug("redirecting unauthenticated request",
				zap.String("path", r.URL.Path),
				zap.String("location", d.Redirect),
			)
			http.Redirect(w, r, d.Redirect, http.StatusTemporaryRedirect)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
