package auth

import (
	"errors"
	"net/http"

	"github.com/ghaggin/pbdemo/internal/pocketbase"
)

// Op names a call site for error messages.
type Op int

const (
	OpLogin Op = iota + 1
	OpRequestOTP
	OpVerifyOTP
	OpRegister
	OpChangePassword
)

const (
	MsgPasswordChanged        = "Password updated successfully"
	MsgPasswordChangedRelogin = "Password updated but auto re-login failed. Please log in again."
)

// Message turns err into the text shown to the user for op.
func Message(op Op, err error) string {
	if err == nil {
		return ""
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	if errors.Is(err, ErrNotLoggedIn) {
		return "Your session has expired. Please log in again."
	}

	status := pocketbase.StatusOf(err)
	msg := pocketbase.MessageOf(err)
	if status == 0 {
		// the request never reached the backend
		msg = ""
	}

	switch op {
	case OpLogin:
		if status == http.StatusBadRequest || status == http.StatusForbidden {
			return "Invalid email or password"
		}
		return fallback(msg, "Login failed")
	case OpRequestOTP:
		return fallback(msg, "Failed to send login link")
	case OpVerifyOTP:
		return fallback(msg, "Invalid OTP code")
	case OpRegister:
		return fallback(msg, "Registration failed")
	case OpChangePassword:
		switch status {
		case http.StatusUnauthorized:
			return "Your session has expired. Please log in again."
		case http.StatusBadRequest:
			return "Missing required values"
		case http.StatusForbidden:
			return "Current password is incorrect"
		case http.StatusNotFound:
			return "Account not found"
		}
		return "An unexpected error occurred"
	}
	return fallback(msg, "Something went wrong")
}

func fallback(msg, def string) string {
	if msg != "" {
		return msg
	}
	return def
}
