// Package gate decides, before a protected page is served, whether the
// request may proceed. The only input is whether the pb_auth cookie is
// present: the token is not parsed, checked for expiry or looked up.
package gate

import (
	"net/http"
	"strings"

	"github.com/ghaggin/pbdemo/internal/cookie"
	"go.uber.org/zap"
)

const LoginPath = "/login"

type Decision struct {
	Admit    bool
	Location string
}

var (
	admit    = Decision{Admit: true}
	redirect = Decision{Location: LoginPath}
)

var publicPaths = map[string]struct{}{
	"/":         {},
	"/login":    {},
	"/register": {},
	"/logout":   {},
	"/api/auth": {},
}

var protectedPrefixes = []string{"/dashboard", "/profile", "/api"}

// Protected reports whether the gate runs for path.
func Protected(path string) bool {
	for _, prefix := range protectedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func Public(path string) bool {
	_, ok := publicPaths[path]
	return ok
}

// Decide admits public paths and paths outside the protected set. Protected
// paths are admitted iff the cookie is present.
func Decide(path string, cookiePresent bool) Decision {
	if Public(path) || !Protected(path) {
		return admit
	}
	if cookiePresent {
		return admit
	}
	return redirect
}

type Gate struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Gate {
	return &Gate{log: log}
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := Decide(r.URL.Path, cookie.Present(r))
		if !d.Admit {
			g.log.Info("no auth cookie, redirecting",
				zap.String("path", r.URL.Path),
				zap.String("location", d.Location))
			http.Redirect(w, r, d.Location, http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}
