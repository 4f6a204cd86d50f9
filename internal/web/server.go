package web

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/ghaggin/pbdemo/internal/auth"
	"github.com/ghaggin/pbdemo/internal/config"
	"github.com/ghaggin/pbdemo/internal/cookie"
	"github.com/ghaggin/pbdemo/internal/demos"
	"github.com/ghaggin/pbdemo/internal/gate"
	"github.com/ghaggin/pbdemo/internal/middleware"
	"github.com/ghaggin/pbdemo/internal/pocketbase"
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

//go:embed static
var static embed.FS

type Server struct {
	log      *zap.Logger
	sessions *middleware.SessionManager
	backend  *pocketbase.Client
	otpLimit *rate.Limiter
	server   *http.Server
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Config   *config.Config
	Sessions *middleware.SessionManager
	Backend  *pocketbase.Client
}

func New(p Params) (*Server, error) {
	s := &Server{
		log:      p.Log,
		sessions: p.Sessions,
		backend:  p.Backend,
		otpLimit: rate.NewLimiter(rate.Limit(p.Config.OTP.Rate), p.Config.OTP.Burst),
	}

	staticFS, err := fs.Sub(static, "static")
	if err != nil {
		return nil, err
	}

	root := chi.NewRouter()
	root.Use(middleware.RequestLogger(p.Log))
	root.Use(gate.New(p.Log).Middleware)
	root.Use(p.Sessions.Wrap)

	// Dashboard
	root.Group(func(r chi.Router) {
		r.Get("/dashboard", s.withUser(s.dashboard))
		r.Get("/dashboard/account", s.withUser(s.account))
		r.Post("/dashboard/account", s.withUser(s.changePassword))
		r.Get("/dashboard/demos/create", s.withUser(s.createDemoForm))
		r.Post("/dashboard/demos/create", s.withUser(s.createDemo))
	})

	// Public
	root.Group(func(r chi.Router) {
		r.Get("/", s.with(s.home))
		r.Get("/login", s.with(s.loginForm))
		r.Post("/login", s.with(s.login))
		r.Post("/login/otp", s.with(s.requestOTP))
		r.Post("/login/otp/verify", s.with(s.verifyOTP))
		r.Get("/register", s.with(s.registerForm))
		r.Post("/register", s.with(s.register))
		r.Get("/logout", s.with(s.logout))

		r.Handle("/static/*", http.StripPrefix("/static", http.FileServer(http.FS(staticFS))))
	})

	s.server = &http.Server{
		Addr:              p.Config.Web.Addr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// RegisterHooks should be invoked by fx
func RegisterHooks(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.server.Shutdown,
	})
}

func (s *Server) Start(_ context.Context) error {
	go func() {
		s.log.Info("listening", zap.String("addr", s.server.Addr))
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error running server", zap.Error(err))
		}
	}()
	return nil
}

// request is the per-request view of the logged-in state.
type request struct {
	auth  *auth.Facade
	demos *demos.Service
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *request)

func (s *Server) with(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, stopSaving := s.sessions.Load(r.Context())
		defer stopSaving()

		backend := s.backend.WithTokens(store)
		facade := auth.New(auth.Params{
			Store:     store,
			Backend:   backend,
			Mirror:    cookie.NewMirror(cookie.NewResponseJar(w, r)),
			Navigator: &refreshNavigator{w: w, log: s.log},
			Log:       s.log,
		})
		facade.Hydrate()
		defer facade.Close()

		h(w, r, &request{
			auth:  facade,
			demos: demos.NewService(backend),
		})
	}
}

// withUser sends visitors without a user to the login page.
func (s *Server) withUser(h handlerFunc) http.HandlerFunc {
	return s.with(func(w http.ResponseWriter, r *http.Request, req *request) {
		if req.auth.User() == nil {
			http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
			return
		}
		h(w, r, req)
	})
}

// refreshNavigator defers navigation to the browser with a Refresh header.
type refreshNavigator struct {
	w   http.ResponseWriter
	log *zap.Logger
	set bool
}

func (n *refreshNavigator) RedirectAfter(delay time.Duration, path string) {
	if n.set {
		return
	}
	n.set = true
	n.w.Header().Set("Refresh", refreshValue(delay, path))
	n.log.Info("scheduled redirect", zap.String("path", path), zap.Duration("delay", delay))
}
