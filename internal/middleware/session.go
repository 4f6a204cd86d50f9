package middleware

import (
	"context"
	"encoding/gob"
	"net/http"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/ghaggin/pbdemo/internal/config"
	"github.com/ghaggin/pbdemo/internal/model"
	"github.com/ghaggin/pbdemo/internal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionKey = "session_key"
)

// SessionManager keeps each browser's model.Session on the server between
// requests.
type SessionManager struct {
	impl *scs.SessionManager
	log  *zap.Logger
}

type SessionParams struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Log    *zap.Logger
}

func NewSessionManager(p SessionParams) (*SessionManager, error) {
	gob.Register(&model.Session{})
	gob.Register(&model.User{})

	sm := &SessionManager{log: p.Log}
	sm.impl = scs.New()
	sm.impl.Lifetime = p.Config.Session.Lifetime

	if addr := p.Config.Session.RedisAddr; addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		sm.impl.Store = goredisstore.New(client)
		p.LC.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		p.Log.Info("using redis session store", zap.String("addr", addr))
	}

	return sm, nil
}

func (s *SessionManager) Wrap(next http.Handler) http.Handler {
	return s.impl.LoadAndSave(next)
}

// Get returns the session saved for this browser, or the empty session.
func (s *SessionManager) Get(ctx context.Context) model.Session {
	saved, ok := s.impl.Get(ctx, sessionKey).(*model.Session)
	if !ok || saved == nil {
		return model.Session{}
	}
	return *saved
}

// Load returns a store holding this browser's session whose changes are
// saved back for the rest of the request. The returned function stops saving.
func (s *SessionManager) Load(ctx context.Context) (*session.Store, func()) {
	store := session.NewStoreFrom(s.Get(ctx))
	unsubscribe := store.OnChange(func(token string, user *model.User) {
		s.put(ctx, model.Session{Token: token, User: user})
	})
	return store, unsubscribe
}

// the session id is renewed whenever the identity changes
func (s *SessionManager) put(ctx context.Context, saved model.Session) {
	if err := s.impl.RenewToken(ctx); err != nil {
		s.log.Warn("failed renewing session token", zap.Error(err))
	}

	if saved.Empty() {
		s.impl.Remove(ctx, sessionKey)
		return
	}
	s.impl.Put(ctx, sessionKey, &saved)
}
