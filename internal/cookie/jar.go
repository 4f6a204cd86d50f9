package cookie

import (
	"net/http"
	"sync"
)

// MemoryJar is a Jar that keeps the last cookie written per name.
type MemoryJar struct {
	mu      sync.Mutex
	cookies map[string]http.Cookie
}

func NewMemoryJar() *MemoryJar {
	return &MemoryJar{cookies: map[string]http.Cookie{}}
}

func (j *MemoryJar) SetCookie(c *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies[c.Name] = *c
}

// Cookie returns the cookie only while it is live.
func (j *MemoryJar) Cookie(name string) (*http.Cookie, bool) {
	j.mu.Lock()
	c, ok := j.cookies[name]
	j.mu.Unlock()
	if !ok || !Live(&c) {
		return nil, false
	}
	return &c, true
}

// ResponseJar writes cookies onto an HTTP response. Reads see cookies written
// during this response first, then those the request arrived with.
type ResponseJar struct {
	w       http.ResponseWriter
	r       *http.Request
	written map[string]*http.Cookie
}

func NewResponseJar(w http.ResponseWriter, r *http.Request) *ResponseJar {
	return &ResponseJar{w: w, r: r, written: map[string]*http.Cookie{}}
}

// SetCookie replaces any Set-Cookie header previously written for the same
// name so repeated syncs leave a single header.
func (j *ResponseJar) SetCookie(c *http.Cookie) {
	cp := *c
	j.written[c.Name] = &cp

	header := j.w.Header()
	var kept []string
	for _, line := range header.Values("Set-Cookie") {
		parsed, err := http.ParseSetCookie(line)
		if err == nil && parsed.Name == c.Name {
			continue
		}
		kept = append(kept, line)
	}
	header.Del("Set-Cookie")
	for _, line := range kept {
		header.Add("Set-Cookie", line)
	}

	http.SetCookie(j.w, &cp)
}

func (j *ResponseJar) Cookie(name string) (*http.Cookie, bool) {
	if c, ok := j.written[name]; ok {
		if !Live(c) {
			return nil, false
		}
		return c, true
	}

	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return c, true
}
