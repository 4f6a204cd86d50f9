package demos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ghaggin/pbdemo/internal/auth"
	"github.com/ghaggin/pbdemo/internal/model"
	"github.com/ghaggin/pbdemo/internal/pocketbase"
)

const (
	collection = "demos"
	PerPage    = 12
	maxNameLen = 100
)

var (
	ErrAuthRequired = errors.New("demos: authentication required")
	htmlTag         = regexp.MustCompile(`<[^>]*>`)
)

type Backend interface {
	List(ctx context.Context, collection string, page, perPage int, opts pocketbase.ListOptions, out any) error
	Create(ctx context.Context, collection string, fields any, out any) error
}

type Service struct {
	backend Backend
	now     func() time.Time
}

func NewService(backend Backend) *Service {
	return &Service{backend: backend, now: time.Now}
}

// List returns the user's demos, newest first.
func (s *Service) List(ctx context.Context, user *model.User, page int) (model.DemoPage, error) {
	if page < 1 {
		page = 1
	}

	opts := pocketbase.ListOptions{Sort: "-created"}
	if user != nil && user.ID != "" {
		opts.Filter = fmt.Sprintf("user = %q", user.ID)
	}

	var out model.DemoPage
	if err := s.backend.List(ctx, collection, page, PerPage, opts, &out); err != nil {
		return model.DemoPage{}, err
	}
	if out.TotalPages < 1 {
		out.TotalPages = 1
	}
	return out, nil
}

type CreateRequest struct {
	Name string
}

// Normalize trims the name and checks it.
func (r CreateRequest) Normalize() (CreateRequest, error) {
	name := strings.TrimSpace(r.Name)
	switch {
	case name == "":
		return r, &auth.ValidationError{Field: "name", Message: "Name is required"}
	case utf8.RuneCountInString(name) > maxNameLen:
		return r, &auth.ValidationError{Field: "name", Message: "Name must be less than 100 characters"}
	case htmlTag.MatchString(name):
		return r, &auth.ValidationError{Field: "name", Message: "HTML tags are not allowed"}
	}
	return CreateRequest{Name: name}, nil
}

func (s *Service) Create(ctx context.Context, user *model.User, req CreateRequest) (model.Demo, error) {
	req, err := req.Normalize()
	if err != nil {
		return model.Demo{}, err
	}
	if user == nil || user.ID == "" {
		return model.Demo{}, ErrAuthRequired
	}

	var d model.Demo
	err = s.backend.Create(ctx, collection, map[string]string{
		"name":    req.Name,
		"user":    user.ID,
		"created": s.now().UTC().Format(time.RFC3339Nano),
	}, &d)
	if err != nil {
		return model.Demo{}, err
	}
	return d, nil
}

const MsgSessionExpired = "Your session has expired. Please log in again."

// CreateMessage turns a Create error into user-facing text. expired is true
// when the caller must be sent to the login page.
func CreateMessage(err error) (msg string, expired bool) {
	var vErr *auth.ValidationError
	switch {
	case errors.As(err, &vErr):
		return vErr.Message, false
	case errors.Is(err, ErrAuthRequired):
		return "Authentication required", false
	}

	switch pocketbase.StatusOf(err) {
	case http.StatusUnauthorized:
		return MsgSessionExpired, true
	case http.StatusForbidden:
		return "You do not have permission to create demos", false
	case 0:
		return "Failed to create demo", false
	}
	if m := pocketbase.MessageOf(err); m != "" {
		return m, false
	}
	return "Failed to create demo", false
}

func ListMessage(err error) string {
	if m := pocketbase.MessageOf(err); m != "" && pocketbase.StatusOf(err) != 0 {
		return m
	}
	return "Failed to load demos"
}
