package session

import (
	"sort"
	"sync"
	"time"

	"github.com/ghaggin/pbdemo/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// Listener is notified with the new token and user after every change,
// including clears (empty token, nil user).
type Listener func(token string, user *model.User)

// Store holds the current authentication token and user record and notifies
// registered listeners synchronously whenever they change.
type Store struct {
	mu        sync.Mutex
	state     model.Session
	listeners map[int]Listener
	nextID    int

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		listeners: map[int]Listener{},
		now:       time.Now,
	}
}

// NewStoreFrom returns a store already holding s. No listener is notified.
func NewStoreFrom(s model.Session) *Store {
	st := NewStore()
	st.state = s
	return st
}

func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token
}

func (s *Store) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.User
}

// IsValid reports whether a non-expired token is held. The token's exp claim
// is read without verifying the signature; the backend remains the authority
// on whether the token is genuine.
func (s *Store) IsValid() bool {
	token := s.Token()
	if token == "" {
		return false
	}

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return s.now().Before(exp.Time)
}

// Save replaces the current state and notifies listeners.
func (s *Store) Save(token string, user *model.User) {
	s.mu.Lock()
	s.state = model.Session{Token: token, User: user}
	s.mu.Unlock()

	s.notify(token, user)
}

// Clear empties the store and notifies listeners.
func (s *Store) Clear() {
	s.Save("", nil)
}

// OnChange registers fn and returns a function that unregisters it. The
// returned function may be called more than once.
func (s *Store) OnChange(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// listeners run outside the lock so they may read the store
func (s *Store) notify(token string, user *model.User) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Ints(ids)
	for _, id := range ids {
		s.mu.Lock()
		fn, ok := s.listeners[id]
		s.mu.Unlock()
		if ok {
			fn(token, user)
		}
	}
}
