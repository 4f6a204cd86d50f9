package auth

import (
	"fmt"
	"net/mail"
	"strings"
)

const minPasswordLength = 8

// ValidationError is a field-level problem found before any backend call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type LoginRequest struct {
	Email    string
	Password string
}

func (r LoginRequest) Validate() error {
	if err := validateEmail("email", r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return &ValidationError{Field: "password", Message: "Password is required"}
	}
	return nil
}

type RegisterRequest struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Message: "Name is required"}
	}
	if err := validateEmail("email", r.Email); err != nil {
		return err
	}
	if len(r.Password) < minPasswordLength {
		return &ValidationError{Field: "password", Message: "Password must be at least 8 characters"}
	}
	if r.Password != r.PasswordConfirm {
		return &ValidationError{Field: "passwordConfirm", Message: "Passwords don't match"}
	}
	return nil
}

type OTPRequest struct {
	Email string
}

func (r OTPRequest) Validate() error {
	return validateEmail("email", r.Email)
}

type OTPVerifyRequest struct {
	OTPID string
	Code  string
}

func (r OTPVerifyRequest) Validate() error {
	if r.OTPID == "" {
		return &ValidationError{Field: "otpId", Message: "Request a new code first"}
	}
	if strings.TrimSpace(r.Code) == "" {
		return &ValidationError{Field: "code", Message: "OTP code is required"}
	}
	return nil
}

type PasswordChangeRequest struct {
	OldPassword     string
	NewPassword     string
	PasswordConfirm string
}

func (r PasswordChangeRequest) Validate() error {
	if r.OldPassword == "" {
		return &ValidationError{Field: "oldPassword", Message: "Current password is required"}
	}
	if len(r.NewPassword) < minPasswordLength {
		return &ValidationError{Field: "password", Message: "New password must be at least 8 characters"}
	}
	if r.PasswordConfirm == "" {
		return &ValidationError{Field: "passwordConfirm", Message: "Password confirmation is required"}
	}
	if r.NewPassword != r.PasswordConfirm {
		return &ValidationError{Field: "passwordConfirm", Message: "Passwords don't match"}
	}
	return nil
}

func validateEmail(field, email string) error {
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: field, Message: "Email is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: field, Message: "Invalid email address"}
	}
	return nil
}
