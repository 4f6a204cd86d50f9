package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func field(err error) string {
	if v, ok := err.(*ValidationError); ok {
		return v.Field
	}
	return ""
}

func TestValidate(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(LoginRequest{Email: "a@b.co", Password: "x"}.Validate())
	assert.Equal("email", field(LoginRequest{Password: "x"}.Validate()))
	assert.Equal("email", field(LoginRequest{Email: "Ann <a@b.co>", Password: "x"}.Validate()))
	assert.Equal("password", field(LoginRequest{Email: "a@b.co"}.Validate()))

	ok := RegisterRequest{Name: "Ann", Email: "a@b.co", Password: "password1", PasswordConfirm: "password1"}
	assert.NoError(ok.Validate())
	r := ok
	r.Name = " "
	assert.Equal("name", field(r.Validate()))
	r = ok
	r.Password, r.PasswordConfirm = "short", "short"
	assert.Equal("password", field(r.Validate()))
	r = ok
	r.PasswordConfirm = "password2"
	assert.Equal("passwordConfirm", field(r.Validate()))

	assert.NoError(OTPRequest{Email: "a@b.co"}.Validate())
	assert.Equal("email", field(OTPRequest{Email: "nope"}.Validate()))
	assert.Equal("otpId", field(OTPVerifyRequest{Code: "1"}.Validate()))
	assert.Equal("code", field(OTPVerifyRequest{OTPID: "x"}.Validate()))

	pc := PasswordChangeRequest{OldPassword: "old", NewPassword: "password2", PasswordConfirm: "password2"}
	assert.NoError(pc.Validate())
	p := pc
	p.OldPassword = ""
	assert.Equal("oldPassword", field(p.Validate()))
	p = pc
	p.NewPassword = "short"
	assert.Equal("password", field(p.Validate()))
	p = pc
	p.PasswordConfirm = ""
	assert.Equal("passwordConfirm", field(p.Validate()))
}
