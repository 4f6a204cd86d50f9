// Package cookie keeps the pb_auth cookie in step with the session token so
// the edge gate can read it on the next request.
package cookie

import (
	"net/http"
	"time"
)

// Name of the cookie the edge gate inspects.
const Name = "pb_auth"

// expired is the fixed past instant used to force the browser to drop the
// cookie.
var expired = time.Date(1970, time.January, 1, 0, 0, 1, 0, time.UTC)

// Jar is where the mirror writes. A browser response and an in-memory jar
// both satisfy it.
type Jar interface {
	SetCookie(c *http.Cookie)
	Cookie(name string) (*http.Cookie, bool)
}

type Mirror struct {
	jar Jar
}

func NewMirror(jar Jar) *Mirror {
	return &Mirror{jar: jar}
}

// Sync writes token into the pb_auth cookie, or expires the cookie when token
// is empty. The cookie is a plain session cookie: it is readable from scripts
// and sent over plain http.
func (m *Mirror) Sync(token string) {
	if token != "" {
		m.jar.SetCookie(&http.Cookie{
			Name:  Name,
			Value: token,
			Path:  "/",
		})
		return
	}

	m.jar.SetCookie(&http.Cookie{
		Name:    Name,
		Value:   "",
		Path:    "/",
		Expires: expired,
		MaxAge:  -1,
	})
}

// Present reports whether the request carries a non-empty pb_auth cookie.
func Present(r *http.Request) bool {
	c, err := r.Cookie(Name)
	if err != nil {
		return false
	}
	return c.Value != ""
}

// Live reports whether c would still be sent by a browser.
func Live(c *http.Cookie) bool {
	if c == nil || c.MaxAge < 0 {
		return false
	}
	if !c.Expires.IsZero() && !c.Expires.After(time.Now()) {
		return false
	}
	return c.Value != ""
}
