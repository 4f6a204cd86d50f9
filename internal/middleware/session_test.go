package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ghaggin/pbdemo/internal/config"
	"github.com/ghaggin/pbdemo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func newManager(t *testing.T, redisAddr string) *SessionManager {
	lc := fxtest.NewLifecycle(t)
	sm, err := NewSessionManager(SessionParams{
		LC: lc,
		Config: &config.Config{Session: config.Session{
			Lifetime:  time.Hour,
			RedisAddr: redisAddr,
		}},
		Log: zap.NewNop(),
	})
	require.NoError(t, err)
	lc.RequireStart()
	t.Cleanup(func() { lc.RequireStop() })
	return sm
}

// roundTrip serves h through the manager, replaying cookies from prev.
func roundTrip(sm *SessionManager, prev *httptest.ResponseRecorder, h http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if prev != nil {
		for _, c := range prev.Result().Cookies() {
			req.AddCookie(c)
		}
	}
	rr := httptest.NewRecorder()
	sm.Wrap(h).ServeHTTP(rr, req)
	return rr
}

func testPersistence(t *testing.T, sm *SessionManager) {
	assert := assert.New(t)

	first := roundTrip(sm, nil, func(w http.ResponseWriter, r *http.Request) {
		store, stop := sm.Load(r.Context())
		defer stop()
		assert.Equal("", store.Token())
		store.Save("tok", &model.User{ID: "u1", Email: "ann@example.com"})
	})

	second := roundTrip(sm, first, func(w http.ResponseWriter, r *http.Request) {
		store, stop := sm.Load(r.Context())
		defer stop()
		assert.Equal("tok", store.Token())
		if assert.NotNil(store.User()) {
			assert.Equal("ann@example.com", store.User().Email)
		}
		store.Clear()
	})

	roundTrip(sm, second, func(w http.ResponseWriter, r *http.Request) {
		assert.True(sm.Get(r.Context()).Empty())
	})
}

func TestSessionManager_Memory(t *testing.T) {
	testPersistence(t, newManager(t, ""))
}

func TestSessionManager_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	testPersistence(t, newManager(t, mr.Addr()))
}

func TestSessionManager_StopSaving(t *testing.T) {
	sm := newManager(t, "")

	first := roundTrip(sm, nil, func(w http.ResponseWriter, r *http.Request) {
		store, stop := sm.Load(r.Context())
		stop()
		store.Save("tok", nil)
	})

	roundTrip(sm, first, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, sm.Get(r.Context()).Empty())
	})
}

func TestRequestLogger(t *testing.T) {
	rr := httptest.NewRecorder()
	h := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
}
