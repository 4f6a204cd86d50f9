package auth

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ghaggin/pbdemo/internal/cookie"
	"github.com/ghaggin/pbdemo/internal/model"
	"github.com/ghaggin/pbdemo/internal/pocketbase"
	"github.com/ghaggin/pbdemo/internal/pocketbase/pbtest"
	"github.com/ghaggin/pbdemo/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNavigator struct {
	mu    sync.Mutex
	calls []string
	delay time.Duration
}

func (n *fakeNavigator) RedirectAfter(delay time.Duration, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delay = delay
	n.calls = append(n.calls, path)
}

type harness struct {
	srv    *pbtest.Server
	store  *session.Store
	jar    *cookie.MemoryJar
	nav    *fakeNavigator
	facade *Facade
}

func newHarness(t *testing.T) *harness {
	srv := pbtest.NewServer()
	t.Cleanup(srv.Close)

	store := session.NewStore()
	jar := cookie.NewMemoryJar()
	nav := &fakeNavigator{}
	client := pocketbase.NewClient(http.DefaultClient, srv.BaseURL(), nil).WithTokens(store)

	f := New(Params{
		Store:     store,
		Backend:   client,
		Mirror:    cookie.NewMirror(jar),
		Navigator: nav,
	})
	t.Cleanup(f.Close)

	return &harness{srv: srv, store: store, jar: jar, nav: nav, facade: f}
}

func (h *harness) cookieValue() (string, bool) {
	c, ok := h.jar.Cookie(cookie.Name)
	if !ok {
		return "", false
	}
	return c.Value, true
}

func TestFacade_InitialAndHydrate(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(t)
	assert.True(h.facade.IsLoading())
	assert.Nil(h.facade.User())

	token := pbtest.Token("u1", time.Hour)
	h.store.Save(token, &model.User{ID: "u1"})

	h.facade.Hydrate()
	assert.False(h.facade.IsLoading())
	assert.Equal("u1", h.facade.User().ID)
	v, ok := h.cookieValue()
	assert.True(ok)
	assert.Equal(token, v)
}

func TestFacade_HydrateSkipsSyncForExpiredToken(t *testing.T) {
	h := newHarness(t)
	h.store.Save(pbtest.Token("u1", -time.Minute), &model.User{ID: "u1"})

	h.facade.Hydrate()
	_, ok := h.cookieValue()
	assert.False(t, ok)
	assert.Equal(t, "u1", h.facade.User().ID)
}

func TestFacade_FollowsStoreUntilClose(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(t)
	h.facade.Hydrate()
	h.facade.Hydrate()

	h.store.Save("t1", &model.User{ID: "u1"})
	assert.Equal("u1", h.facade.User().ID)
	v, _ := h.cookieValue()
	assert.Equal("t1", v)

	h.facade.Close()
	h.store.Save("t2", &model.User{ID: "u2"})
	assert.Equal("u1", h.facade.User().ID)
	v, _ = h.cookieValue()
	assert.Equal("t1", v)
}

func TestFacade_LoginSuccess(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	h := newHarness(t)
	h.facade.Hydrate()
	u := h.srv.AddUser("ann@example.com", "password1", "Ann")

	res, err := h.facade.Login(context.Background(), LoginRequest{Email: "ann@example.com", Password: "password1"})
	require.NoError(err)
	assert.NotEmpty(res.Token)
	assert.Equal(u.ID, res.Record.ID)

	assert.Equal(u.ID, h.store.User().ID)
	assert.Equal(res.Token, h.store.Token())
	assert.Equal(u.ID, h.facade.User().ID)
	v, ok := h.cookieValue()
	assert.True(ok)
	assert.Equal(res.Token, v)
}

func TestFacade_LoginFailureLeavesStateUnchanged(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	h := newHarness(t)
	prior := pbtest.Token("prior", time.Hour)
	h.store.Save(prior, &model.User{ID: "prior"})
	h.facade.Hydrate()

	h.srv.Fail(pbtest.RouteAuthWithPassword, http.StatusForbidden, "nope")
	_, err := h.facade.Login(context.Background(), LoginRequest{Email: "ann@example.com", Password: "password1"})
	require.Error(err)
	assert.Equal(http.StatusForbidden, pocketbase.StatusOf(err))
	assert.Equal("Invalid email or password", Message(OpLogin, err))

	assert.Equal(prior, h.store.Token())
	assert.Equal("prior", h.store.User().ID)
	v, _ := h.cookieValue()
	assert.Equal(prior, v)
}

func TestFacade_LoginValidationNeverCallsBackend(t *testing.T) {
	h := newHarness(t)

	_, err := h.facade.Login(context.Background(), LoginRequest{Email: "not-an-email", Password: "x"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "email", vErr.Field)
	assert.Equal(t, 0, h.srv.Requests())
}

func TestFacade_Logout(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(t)
	h.srv.AddUser("ann@example.com", "password1", "Ann")
	h.facade.Hydrate()
	_, err := h.facade.Login(context.Background(), LoginRequest{Email: "ann@example.com", Password: "password1"})
	require.NoError(t, err)
	before := h.srv.Requests()

	h.facade.Logout()
	assert.Equal("", h.store.Token())
	assert.Nil(h.store.User())
	assert.Nil(h.facade.User())
	_, ok := h.cookieValue()
	assert.False(ok)
	assert.Equal(before, h.srv.Requests())
}

func TestFacade_RegisterDoesNotLogIn(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	h := newHarness(t)
	h.facade.Hydrate()

	u, err := h.facade.Register(context.Background(), RegisterRequest{
		Name:            "Ann",
		Email:           "Ann.B+x@Example.com",
		Password:        "password1",
		PasswordConfirm: "password1",
	})
	require.NoError(err)
	assert.Equal("ann_b_x_example_com", u.Username)
	assert.Equal("", h.store.Token())
	assert.Nil(h.facade.User())
	_, ok := h.cookieValue()
	assert.False(ok)

	_, err = h.facade.Login(context.Background(), LoginRequest{Email: "Ann.B+x@Example.com", Password: "password1"})
	assert.NoError(err)
}

func TestFacade_RegisterRejected(t *testing.T) {
	h := newHarness(t)
	req := RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "password1", PasswordConfirm: "password1"}

	_, err := h.facade.Register(context.Background(), req)
	require.NoError(t, err)

	_, err = h.facade.Register(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, "Failed to create record.", Message(OpRegister, err))
}

func TestFacade_OTP(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	h := newHarness(t)
	h.facade.Hydrate()
	u := h.srv.AddUser("ann@example.com", "password1", "Ann")

	otpID, err := h.facade.RequestOTP(context.Background(), OTPRequest{Email: "ann@example.com"})
	require.NoError(err)
	require.NotEmpty(otpID)

	_, err = h.facade.VerifyOTP(context.Background(), OTPVerifyRequest{OTPID: otpID, Code: "000000"})
	require.Error(err)
	assert.Equal("", h.store.Token())
	assert.Nil(h.store.User())
	_, ok := h.cookieValue()
	assert.False(ok)

	res, err := h.facade.VerifyOTP(context.Background(), OTPVerifyRequest{OTPID: otpID, Code: h.srv.OTPCode(otpID)})
	require.NoError(err)
	assert.Equal(u.ID, h.store.User().ID)
	v, _ := h.cookieValue()
	assert.Equal(res.Token, v)
}

func loggedIn(t *testing.T, h *harness) model.User {
	u := h.srv.AddUser("ann@example.com", "password1", "Ann")
	h.facade.Hydrate()
	_, err := h.facade.Login(context.Background(), LoginRequest{Email: "ann@example.com", Password: "password1"})
	require.NoError(t, err)
	return u
}

func TestFacade_ChangePassword(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	h := newHarness(t)
	loggedIn(t, h)

	res, err := h.facade.ChangePassword(context.Background(), PasswordChangeRequest{
		OldPassword:     "password1",
		NewPassword:     "password2",
		PasswordConfirm: "password2",
	})
	require.NoError(err)
	assert.Equal(PasswordChanged, res.Status)
	assert.Equal(MsgPasswordChanged, res.Message)
	assert.Empty(h.nav.calls)
	assert.NotEmpty(h.store.Token())
}

func TestFacade_ChangePasswordReloginFails(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	h := newHarness(t)
	loggedIn(t, h)
	h.srv.Fail(pbtest.RouteAuthWithPassword, http.StatusBadRequest, "Failed to authenticate.")

	res, err := h.facade.ChangePassword(context.Background(), PasswordChangeRequest{
		OldPassword:     "password1",
		NewPassword:     "password2",
		PasswordConfirm: "password2",
	})
	require.NoError(err)
	assert.Equal(PasswordChangedReloginFailed, res.Status)
	assert.Equal(MsgPasswordChangedRelogin, res.Message)
	assert.Equal([]string{LoginPath}, h.nav.calls)
	assert.Equal(ReloginRedirectDelay, h.nav.delay)
}

func TestFacade_ChangePasswordErrors(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(t)
	_, err := h.facade.ChangePassword(context.Background(), PasswordChangeRequest{})
	assert.ErrorIs(err, ErrNotLoggedIn)

	loggedIn(t, h)

	_, err = h.facade.ChangePassword(context.Background(), PasswordChangeRequest{
		OldPassword: "password1", NewPassword: "password2", PasswordConfirm: "password3",
	})
	assert.Equal("Passwords don't match", Message(OpChangePassword, err))

	_, err = h.facade.ChangePassword(context.Background(), PasswordChangeRequest{
		OldPassword: "wrong-one", NewPassword: "password2", PasswordConfirm: "password2",
	})
	assert.Equal("Current password is incorrect", Message(OpChangePassword, err))

	h.srv.Fail(pbtest.RouteUpdate, http.StatusNotFound, "missing")
	_, err = h.facade.ChangePassword(context.Background(), PasswordChangeRequest{
		OldPassword: "password1", NewPassword: "password2", PasswordConfirm: "password2",
	})
	assert.Equal("Account not found", Message(OpChangePassword, err))

	h.srv.Fail(pbtest.RouteUpdate, http.StatusBadRequest, "missing")
	_, err = h.facade.ChangePassword(context.Background(), PasswordChangeRequest{
		OldPassword: "password1", NewPassword: "password2", PasswordConfirm: "password2",
	})
	assert.Equal("Missing required values", Message(OpChangePassword, err))

	h.srv.Fail(pbtest.RouteUpdate, http.StatusUnauthorized, "expired")
	_, err = h.facade.ChangePassword(context.Background(), PasswordChangeRequest{
		OldPassword: "password1", NewPassword: "password2", PasswordConfirm: "password2",
	})
	assert.True(pocketbase.IsUnauthorized(err))
	assert.Equal("Your session has expired. Please log in again.", Message(OpChangePassword, err))
	assert.Empty(h.nav.calls)
}
