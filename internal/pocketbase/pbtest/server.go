// Package pbtest runs an in-memory stand-in for the PocketBase REST endpoints
// the application calls, for use in tests.
package pbtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ghaggin/pbdemo/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RouteAuthWithPassword = "auth-with-password"
	RouteRequestOTP       = "request-otp"
	RouteAuthWithOTP      = "auth-with-otp"
	RouteCreate           = "create"
	RouteUpdate           = "update"
	RouteList             = "list"
)

var signingKey = []byte("pbtest")

type userRow struct {
	user     model.User
	password string
}

type failure struct {
	status  int
	message string
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[string]*userRow
	demos     []model.Demo
	otps      map[string]otp
	failures  map[string][]failure
	requests  int
	tokenTTL  time.Duration
	now       func() time.Time
	createdAt int
}

type otp struct {
	userID string
	code   string
}

func NewServer() *Server {
	s := &Server{
		users:    map[string]*userRow{},
		otps:     map[string]otp{},
		failures: map[string][]failure{},
		tokenTTL: time.Hour,
		now:      time.Now,
	}

	r := chi.NewRouter()
	r.Use(s.count)
	r.Route("/api/collections/{collection}", func(r chi.Router) {
		r.Post("/auth-with-password", s.authWithPassword)
		r.Post("/request-otp", s.requestOTP)
		r.Post("/auth-with-otp", s.authWithOTP)
		r.Get("/records", s.list)
		r.Post("/records", s.create)
		r.Patch("/records/{id}", s.update)
	})

	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) BaseURL() url.URL {
	u, _ := url.Parse(s.URL)
	return *u
}

// AddUser stores a user with the given password and returns its record.
func (s *Server) AddUser(email, password, name string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password, name, "")
}

// Requests returns the number of requests served so far.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Fail makes the next request to route answer status with message. Calls
// queue up.
func (s *Server) Fail(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, message: message})
}

// OTPCode returns the code issued for otpID.
func (s *Server) OTPCode(otpID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otps[otpID].code
}

func (s *Server) Demos() []model.Demo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Demo, len(s.demos))
	copy(out, s.demos)
	return out
}

// Token mints a token for userID that expires after ttl.
func Token(userID string, ttl time.Duration) string {
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   userID,
		"type": "auth",
		"exp":  time.Now().Add(ttl).Unix(),
	}).SignedString(signingKey)
	return token
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injected(w http.ResponseWriter, route string) bool {
	s.mu.Lock()
	queue := s.failures[route]
	if len(queue) == 0 {
		s.mu.Unlock()
		return false
	}
	f := queue[0]
	s.failures[route] = queue[1:]
	s.mu.Unlock()

	writeError(w, f.status, f.message)
	return true
}

func (s *Server) authWithPassword(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, RouteAuthWithPassword) {
		return
	}

	var body struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Something went wrong while processing your request.")
		return
	}

	s.mu.Lock()
	row := s.findLocked(body.Identity)
	s.mu.Unlock()
	if row == nil || row.password != body.Password {
		writeError(w, http.StatusBadRequest, "Failed to authenticate.")
		return
	}

	s.writeAuth(w, row.user)
}

func (s *Server) requestOTP(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, RouteRequestOTP) {
		return
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		writeError(w, http.StatusBadRequest, "Something went wrong while processing your request.")
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	o := otp{code: strconv.Itoa(100000 + len(s.otps))}
	if row := s.findLocked(body.Email); row != nil {
		o.userID = row.user.ID
	}
	s.otps[id] = o
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"otpId": id})
}

func (s *Server) authWithOTP(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, RouteAuthWithOTP) {
		return
	}

	var body struct {
		OTPID    string `json:"otpId"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Something went wrong while processing your request.")
		return
	}

	s.mu.Lock()
	o, ok := s.otps[body.OTPID]
	row := s.users[o.userID]
	if ok && o.code == body.Password && row != nil {
		delete(s.otps, body.OTPID)
	}
	s.mu.Unlock()

	if !ok || o.code != body.Password || row == nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired OTP.")
		return
	}

	s.writeAuth(w, row.user)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, RouteCreate) {
		return
	}

	switch chi.URLParam(r, "collection") {
	case "users":
		s.createUser(w, r)
	case "demos":
		s.createDemo(w, r)
	default:
		writeError(w, http.StatusNotFound, "Missing collection context.")
	}
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
		Name            string `json:"name"`
		Username        string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to create record.")
		return
	}
	if body.Email == "" || body.Password == "" || body.Password != body.PasswordConfirm {
		writeError(w, http.StatusBadRequest, "Failed to create record.")
		return
	}

	s.mu.Lock()
	if s.findLocked(body.Email) != nil {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Failed to create record.")
		return
	}
	u := s.addUserLocked(body.Email, body.Password, body.Name, body.Username)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, u)
}

func (s *Server) createDemo(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "The request requires valid record authorization token.")
		return
	}

	var body model.Demo
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "Failed to create record.")
		return
	}
	if body.User != caller {
		writeError(w, http.StatusForbidden, "Only admins can perform this action.")
		return
	}

	s.mu.Lock()
	s.createdAt++
	d := model.Demo{
		ID:      uuid.NewString(),
		Name:    body.Name,
		User:    body.User,
		Created: s.now().Add(time.Duration(s.createdAt) * time.Millisecond).UTC().Format("2006-01-02 15:04:05.000Z"),
	}
	d.Updated = d.Created
	s.demos = append(s.demos, d)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, d)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, RouteUpdate) {
		return
	}

	caller, ok := s.caller(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "The request requires valid record authorization token.")
		return
	}

	id := chi.URLParam(r, "id")
	s.mu.Lock()
	row := s.users[id]
	s.mu.Unlock()
	if row == nil {
		writeError(w, http.StatusNotFound, "The requested resource wasn't found.")
		return
	}
	if caller != id {
		writeError(w, http.StatusForbidden, "Only admins can perform this action.")
		return
	}

	var body struct {
		OldPassword     string `json:"oldPassword"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
		Name            string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to update record.")
		return
	}
	if body.Password != "" {
		if body.OldPassword == "" || body.Password != body.PasswordConfirm {
			writeError(w, http.StatusBadRequest, "Failed to update record.")
			return
		}
		if body.OldPassword != row.password {
			writeError(w, http.StatusForbidden, "Invalid old password.")
			return
		}
	}

	s.mu.Lock()
	if body.Password != "" {
		row.password = body.Password
	}
	if body.Name != "" {
		row.user.Name = body.Name
	}
	u := row.user
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, u)
}

var userFilter = regexp.MustCompile(`^user\s*=\s*"([^"]*)"$`)

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, RouteList) {
		return
	}
	if chi.URLParam(r, "collection") != "demos" {
		writeError(w, http.StatusNotFound, "Missing collection context.")
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	if perPage < 1 {
		perPage = 30
	}

	items := s.Demos()
	if f := q.Get("filter"); f != "" {
		m := userFilter.FindStringSubmatch(f)
		if m == nil {
			writeError(w, http.StatusBadRequest, "Invalid filter parameters.")
			return
		}
		filtered := items[:0]
		for _, d := range items {
			if d.User == m[1] {
				filtered = append(filtered, d)
			}
		}
		items = filtered
	}
	if q.Get("sort") == "-created" {
		sort.SliceStable(items, func(i, j int) bool { return items[i].Created > items[j].Created })
	}

	total := len(items)
	totalPages := (total + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, model.DemoPage{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
		Items:      items[start:end],
	})
}

func (s *Server) caller(r *http.Request) (string, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		return "", false
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", false
	}

	id, _ := claims["id"].(string)
	s.mu.Lock()
	_, exists := s.users[id]
	s.mu.Unlock()
	return id, exists
}

func (s *Server) writeAuth(w http.ResponseWriter, u model.User) {
	writeJSON(w, http.StatusOK, map[string]any{
		"token":  Token(u.ID, s.tokenTTL),
		"record": u,
	})
}

func (s *Server) findLocked(identity string) *userRow {
	for _, row := range s.users {
		if strings.EqualFold(row.user.Email, identity) || row.user.Username == identity {
			return row
		}
	}
	return nil
}

func (s *Server) addUserLocked(email, password, name, username string) model.User {
	now := s.now().UTC().Format("2006-01-02 15:04:05.000Z")
	u := model.User{
		ID:             strings.ReplaceAll(uuid.NewString(), "-", "")[:15],
		CollectionName: "users",
		Email:          email,
		Username:       username,
		Name:           name,
		Created:        now,
		Updated:        now,
	}
	s.users[u.ID] = &userRow{user: u, password: password}
	return u
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"status":  status,
		"message": message,
		"data":    map[string]any{},
	})
}
