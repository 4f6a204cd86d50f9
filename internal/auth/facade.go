// Package auth holds the operations views use to change who is logged in:
// login, logout, registration, one-time-code login and password change. Every
// change goes through the session store, whose listener keeps the pb_auth
// cookie in step.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ghaggin/pbdemo/internal/model"
	"github.com/ghaggin/pbdemo/internal/pocketbase"
	"github.com/ghaggin/pbdemo/internal/session"
	"go.uber.org/zap"
)

const (
	usersCollection = "users"

	// ReloginRedirectDelay is how long the partial-success message of a
	// password change stays up before navigation to the login page.
	ReloginRedirectDelay = 2 * time.Second
	LoginPath            = "/login"
)

var ErrNotLoggedIn = errors.New("auth: not logged in")

type Backend interface {
	AuthWithPassword(ctx context.Context, collection, identity, password string) (pocketbase.AuthResult, error)
	RequestOTP(ctx context.Context, collection, email string) (string, error)
	AuthWithOTP(ctx context.Context, collection, otpID, code string) (pocketbase.AuthResult, error)
	Create(ctx context.Context, collection string, fields any, out any) error
	Update(ctx context.Context, collection, id string, fields any, out any) error
}

// Syncer mirrors the token somewhere the edge gate can see it.
type Syncer interface {
	Sync(token string)
}

// Navigator schedules a one-shot navigation.
type Navigator interface {
	RedirectAfter(delay time.Duration, path string)
}

type Params struct {
	Store     *session.Store
	Backend   Backend
	Mirror    Syncer
	Navigator Navigator
	Log       *zap.Logger
}

type Facade struct {
	store   *session.Store
	backend Backend
	mirror  Syncer
	nav     Navigator
	log     *zap.Logger

	mu          sync.Mutex
	isLoading   bool
	user        *model.User
	unsubscribe func()
}

// New returns a facade in the loading state. Call Hydrate before reading
// User.
func New(p Params) *Facade {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Facade{
		store:     p.Store,
		backend:   p.Backend,
		mirror:    p.Mirror,
		nav:       p.Navigator,
		log:       log,
		isLoading: true,
	}
}

// Hydrate adopts the store's current state and starts following its changes
// until Close.
func (f *Facade) Hydrate() {
	if f.store.IsValid() {
		f.mirror.Sync(f.store.Token())
	}

	f.mu.Lock()
	f.user = f.store.User()
	f.isLoading = false
	subscribed := f.unsubscribe != nil
	f.mu.Unlock()

	if subscribed {
		return
	}

	unsubscribe := f.store.OnChange(func(token string, user *model.User) {
		f.setUser(user)
		f.mirror.Sync(token)
	})

	f.mu.Lock()
	f.unsubscribe = unsubscribe
	f.mu.Unlock()
}

// Close stops following store changes.
func (f *Facade) Close() {
	f.mu.Lock()
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	f.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (f *Facade) IsLoading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isLoading
}

func (f *Facade) User() *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

func (f *Facade) setUser(u *model.User) {
	f.mu.Lock()
	f.user = u
	f.mu.Unlock()
}

// Login authenticates with email and password. On failure the error is
// returned as received and nothing is changed.
func (f *Facade) Login(ctx context.Context, req LoginRequest) (pocketbase.AuthResult, error) {
	if err := req.Validate(); err != nil {
		return pocketbase.AuthResult{}, err
	}

	res, err := f.backend.AuthWithPassword(ctx, usersCollection, req.Email, req.Password)
	if err != nil {
		f.log.Info("login rejected", zap.Int("status", pocketbase.StatusOf(err)))
		return pocketbase.AuthResult{}, err
	}

	f.adopt(res)
	return res, nil
}

// RequestOTP asks the backend to email a one-time code and returns the id
// the code must be verified against.
func (f *Facade) RequestOTP(ctx context.Context, req OTPRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	return f.backend.RequestOTP(ctx, usersCollection, req.Email)
}

// VerifyOTP exchanges a one-time code for a session. A rejected code leaves
// the store untouched.
func (f *Facade) VerifyOTP(ctx context.Context, req OTPVerifyRequest) (pocketbase.AuthResult, error) {
	if err := req.Validate(); err != nil {
		return pocketbase.AuthResult{}, err
	}

	res, err := f.backend.AuthWithOTP(ctx, usersCollection, req.OTPID, req.Code)
	if err != nil {
		f.log.Info("otp rejected", zap.Int("status", pocketbase.StatusOf(err)))
		return pocketbase.AuthResult{}, err
	}

	f.adopt(res)
	return res, nil
}

func (f *Facade) adopt(res pocketbase.AuthResult) {
	f.store.Save(res.Token, res.Record)
	f.setUser(res.Record)
	f.mirror.Sync(res.Token)
}

// Logout clears local state only; the token is not revoked on the backend.
func (f *Facade) Logout() {
	f.store.Clear()
	f.setUser(nil)
	f.mirror.Sync("")
}

// Register creates the account. It does not log in.
func (f *Facade) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fields := map[string]any{
		"name":            req.Name,
		"email":           req.Email,
		"password":        req.Password,
		"passwordConfirm": req.PasswordConfirm,
		"username":        DeriveUsername(req.Email),
	}

	var u model.User
	if err := f.backend.Create(ctx, usersCollection, fields, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

type PasswordChangeStatus int

const (
	PasswordChanged PasswordChangeStatus = iota + 1
	// PasswordChangedReloginFailed means the new password is stored but the
	// session could not be refreshed with it.
	PasswordChangedReloginFailed
)

type PasswordChangeResult struct {
	Status  PasswordChangeStatus
	Message string
}

// ChangePassword updates the current user's password and logs in again with
// it. A failed re-login still reports the change and schedules navigation to
// the login page.
func (f *Facade) ChangePassword(ctx context.Context, req PasswordChangeRequest) (PasswordChangeResult, error) {
	user := f.User()
	if user == nil {
		return PasswordChangeResult{}, ErrNotLoggedIn
	}
	if err := req.Validate(); err != nil {
		return PasswordChangeResult{}, err
	}

	err := f.backend.Update(ctx, usersCollection, user.ID, map[string]any{
		"oldPassword":     req.OldPassword,
		"password":        req.NewPassword,
		"passwordConfirm": req.PasswordConfirm,
		"username":        user.Username,
	}, nil)
	if err != nil {
		return PasswordChangeResult{}, fmt.Errorf("update password: %w", err)
	}

	_, err = f.Login(ctx, LoginRequest{Email: user.Email, Password: req.NewPassword})
	if err != nil {
		f.log.Warn("re-login after password change failed",
			zap.String("user", user.ID),
			zap.Error(err))
		if f.nav != nil {
			f.nav.RedirectAfter(ReloginRedirectDelay, LoginPath)
		}
		return PasswordChangeResult{
			Status:  PasswordChangedReloginFailed,
			Message: MsgPasswordChangedRelogin,
		}, nil
	}

	return PasswordChangeResult{
		Status:  PasswordChanged,
		Message: MsgPasswordChanged,
	}, nil
}
