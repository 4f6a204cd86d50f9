package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ghaggin/pbdemo/internal/auth"
	"github.com/ghaggin/pbdemo/internal/demos"
	"github.com/ghaggin/pbdemo/internal/pocketbase"
	"github.com/ghaggin/pbdemo/internal/template"
	"go.uber.org/zap"
)

const dashboardPath = "/dashboard"

func refreshValue(delay time.Duration, path string) string {
	return fmt.Sprintf("%d; url=%s", int(delay.Seconds()), path)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, tmpl string, td *template.Data) {
	err := template.RenderStatus(w, r, status, tmpl, td)
	if err != nil {
		s.log.Error("failed rendering template", zap.String("template", tmpl), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// formError fills td from err: validation problems go next to their field,
// everything else into the page error.
func formError(td *template.Data, err error, msg string) {
	var vErr *auth.ValidationError
	if errors.As(err, &vErr) {
		if td.Fields == nil {
			td.Fields = map[string]string{}
		}
		td.Fields[vErr.Field] = vErr.Message
		return
	}
	td.Error = msg
}

// expire logs the browser out and sends it to the login page when the
// backend rejected its token.
func (s *Server) expire(w http.ResponseWriter, r *http.Request, req *request, err error) bool {
	if !pocketbase.IsUnauthorized(err) {
		return false
	}
	s.log.Info("session expired, logging out", zap.String("path", r.URL.Path))
	req.auth.Logout()
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
	return true
}

func (s *Server) home(w http.ResponseWriter, r *http.Request, req *request) {
	s.render(w, r, http.StatusOK, "home.html", &template.Data{
		PageTitle: "home",
		User:      req.auth.User(),
	})
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request, req *request) {
	s.render(w, r, http.StatusOK, "login.html", &template.Data{
		PageTitle: "login",
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, req *request) {
	lr := auth.LoginRequest{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	_, err := req.auth.Login(r.Context(), lr)
	if err != nil {
		td := &template.Data{
			PageTitle: "login",
			Form:      map[string]string{"email": lr.Email},
		}
		formError(td, err, auth.Message(auth.OpLogin, err))
		s.render(w, r, http.StatusOK, "login.html", td)
		return
	}

	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (s *Server) requestOTP(w http.ResponseWriter, r *http.Request, req *request) {
	td := &template.Data{PageTitle: "login"}

	if !s.otpLimit.Allow() {
		td.Error = "Too many requests. Please try again later."
		s.render(w, r, http.StatusTooManyRequests, "login.html", td)
		return
	}

	otpID, err := req.auth.RequestOTP(r.Context(), auth.OTPRequest{Email: r.PostFormValue("email")})
	if err != nil {
		var vErr *auth.ValidationError
		if errors.As(err, &vErr) {
			td.Fields = map[string]string{"otpEmail": vErr.Message}
		} else {
			td.Error = auth.Message(auth.OpRequestOTP, err)
		}
		s.render(w, r, http.StatusOK, "login.html", td)
		return
	}

	td.OTPID = otpID
	s.render(w, r, http.StatusOK, "login.html", td)
}

func (s *Server) verifyOTP(w http.ResponseWriter, r *http.Request, req *request) {
	vr := auth.OTPVerifyRequest{
		OTPID: r.PostFormValue("otpId"),
		Code:  r.PostFormValue("code"),
	}

	_, err := req.auth.VerifyOTP(r.Context(), vr)
	if err != nil {
		td := &template.Data{PageTitle: "login", OTPID: vr.OTPID}
		formError(td, err, auth.Message(auth.OpVerifyOTP, err))
		s.render(w, r, http.StatusOK, "login.html", td)
		return
	}

	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (s *Server) registerForm(w http.ResponseWriter, r *http.Request, req *request) {
	s.render(w, r, http.StatusOK, "register.html", &template.Data{
		PageTitle: "register",
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, req *request) {
	rr := auth.RegisterRequest{
		Name:            r.PostFormValue("name"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("passwordConfirm"),
	}
	td := &template.Data{
		PageTitle: "register",
		Form:      map[string]string{"name": rr.Name, "email": rr.Email},
	}

	if _, err := req.auth.Register(r.Context(), rr); err != nil {
		formError(td, err, auth.Message(auth.OpRegister, err))
		s.render(w, r, http.StatusOK, "register.html", td)
		return
	}

	// registering does not log in
	if _, err := req.auth.Login(r.Context(), auth.LoginRequest{Email: rr.Email, Password: rr.Password}); err != nil {
		formError(td, err, auth.Message(auth.OpLogin, err))
		s.render(w, r, http.StatusOK, "register.html", td)
		return
	}

	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, req *request) {
	req.auth.Logout()
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request, req *request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	user := req.auth.User()
	td := &template.Data{PageTitle: "dashboard", User: user}

	list, err := req.demos.List(r.Context(), user, page)
	if err != nil {
		if s.expire(w, r, req, err) {
			return
		}
		td.Error = demos.ListMessage(err)
		td.Pages = template.NewPagination(page, 1)
		s.render(w, r, http.StatusOK, "dashboard.html", td)
		return
	}

	td.Page = list
	td.Pages = template.NewPagination(page, list.TotalPages)
	s.render(w, r, http.StatusOK, "dashboard.html", td)
}

func (s *Server) account(w http.ResponseWriter, r *http.Request, req *request) {
	s.render(w, r, http.StatusOK, "account.html", &template.Data{
		PageTitle: "account",
		User:      req.auth.User(),
	})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request, req *request) {
	res, err := req.auth.ChangePassword(r.Context(), auth.PasswordChangeRequest{
		OldPassword:     r.PostFormValue("oldPassword"),
		NewPassword:     r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("passwordConfirm"),
	})
	if err != nil && s.expire(w, r, req, err) {
		return
	}

	td := &template.Data{PageTitle: "account"}
	switch {
	case err != nil:
		td.Error = auth.Message(auth.OpChangePassword, err)
	case res.Status == auth.PasswordChangedReloginFailed:
		td.Error = res.Message
	default:
		td.Message = res.Message
	}
	td.User = req.auth.User()

	s.render(w, r, http.StatusOK, "account.html", td)
}

func (s *Server) createDemoForm(w http.ResponseWriter, r *http.Request, req *request) {
	s.render(w, r, http.StatusOK, "create_demo.html", &template.Data{
		PageTitle: "create demo",
		User:      req.auth.User(),
	})
}

func (s *Server) createDemo(w http.ResponseWriter, r *http.Request, req *request) {
	name := r.PostFormValue("name")

	_, err := req.demos.Create(r.Context(), req.auth.User(), demos.CreateRequest{Name: name})
	if err != nil {
		if s.expire(w, r, req, err) {
			return
		}
		msg, _ := demos.CreateMessage(err)

		td := &template.Data{
			PageTitle: "create demo",
			User:      req.auth.User(),
			Form:      map[string]string{"name": name},
		}
		formError(td, err, msg)
		s.render(w, r, http.StatusOK, "create_demo.html", td)
		return
	}

	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}
