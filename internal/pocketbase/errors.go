package pocketbase

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a response the backend rejected. Status is 0 when the request never
// got a response.
type Error struct {
	Status  int            `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`

	Base error `json:"-"`
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("pocketbase: %s", e.Message)
	}
	return fmt.Sprintf("pocketbase: %d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Base
}

// StatusOf returns the backend status carried by err, or 0.
func StatusOf(err error) int {
	var pbErr *Error
	if errors.As(err, &pbErr) {
		return pbErr.Status
	}
	return 0
}

// MessageOf returns the backend message carried by err, or "".
func MessageOf(err error) string {
	var pbErr *Error
	if errors.As(err, &pbErr) {
		return pbErr.Message
	}
	return ""
}

func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

func transportError(err error) *Error {
	return &Error{Message: "request failed", Base: err}
}
