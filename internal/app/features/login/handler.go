// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/errors"
	athletestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/athletes"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auditlog"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auth"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/authutil"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/normalize"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/ratelimit"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/timeouts"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/viewdata"
	"github.com/GoFast-Athlete-Training/crewhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB            *mongo.Database
	Log           *zap.Logger
	SessionMgr    *auth.SessionManager
	ErrLog        *uierrors.ErrorLogger
	AuditLog      *auditlog.Logger
	Athletes      *athletestore.Store
	Limiter       *ratelimit.LoginLimiter
	GoogleEnabled bool
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	googleEnabled bool,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		DB:            db,
		Log:           logger,
		SessionMgr:    sessionMgr,
		ErrLog:        errLog,
		AuditLog:      audit,
		Athletes:      athletestore.New(db),
		Limiter:       ratelimit.NewLoginLimiter(),
		GoogleEnabled: googleEnabled,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template-data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type loginFormData struct {
	viewdata.BaseVM
	Error         string
	Email         string
	ReturnURL     string
	GoogleEnabled bool
}

type registerFormData struct {
	viewdata.BaseVM
	Error         string
	FullName      string
	Email         string
	ReturnURL     string
	PasswordRules string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "login", loginFormData{
		BaseVM:        viewdata.NewBaseVM(r, "Sign in", "/"),
		ReturnURL:     query.Get(r, "return"),
		GoogleEnabled: h.GoogleEnabled,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	ret := strings.TrimSpace(r.FormValue("return"))

	if email == "" || password == "" {
		h.renderLoginError(w, r, "Please enter your email and password.", email, ret)
		return
	}

	if ok, reason := h.Limiter.Check(r, email); !ok {
		h.renderLoginError(w, r, reason, email, ret)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Athletes.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		h.AuditLog.LoginFailedUserNotFound(ctx, r, email)
		h.renderLoginError(w, r, "No account found for that email.", email, ret)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "DB find athlete", err, "A server error occurred.", "/login")
		return
	}

	if normalize.Status(a.Status) == "disabled" {
		h.AuditLog.LoginFailedUserDisabled(ctx, r, a.ID, a.Email)
		h.renderLoginError(w, r, "Your account is currently disabled.", email, ret)
		return
	}

	if normalize.AuthMethod(a.AuthMethod) == "google" {
		h.renderLoginError(w, r, "This account signs in with Google. Use the Google button below.", email, ret)
		return
	}

	if a.PasswordHash == nil || !authutil.CheckPassword(password, *a.PasswordHash) {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, a.ID, a.Email)
		h.renderLoginError(w, r, "Incorrect password. Please try again.", email, ret)
		return
	}

	h.Limiter.ResetEmail(email)
	h.completeSignIn(w, r, a, ret)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login/register                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "login_register", registerFormData{
		BaseVM:        viewdata.NewBaseVM(r, "Create account", "/login"),
		ReturnURL:     query.Get(r, "return"),
		PasswordRules: authutil.PasswordRules(),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login/register                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleRegisterPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login/register")
		return
	}

	fullName := strings.TrimSpace(r.FormValue("full_name"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	confirm := r.FormValue("confirm_password")
	ret := strings.TrimSpace(r.FormValue("return"))

	renderErr := func(msg string) {
		templates.Render(w, r, "login_register", registerFormData{
			BaseVM:        viewdata.NewBaseVM(r, "Create account", "/login"),
			Error:         msg,
			FullName:      fullName,
			Email:         email,
			ReturnURL:     ret,
			PasswordRules: authutil.PasswordRules(),
		})
	}

	if fullName == "" {
		renderErr("Please enter your name.")
		return
	}
	if !authutil.IsValidEmail(email) {
		renderErr("Please enter a valid email address.")
		return
	}
	if password != confirm {
		renderErr("Passwords do not match.")
		return
	}
	if err := authutil.ValidatePassword(password); err != nil {
		renderErr(err.Error())
		return
	}

	hash, err := authutil.HashPassword(password)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "hash password failed", err, "A server error occurred.", "/login/register")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Athletes.Create(ctx, models.Athlete{
		FullName:     fullName,
		Email:        email,
		AuthMethod:   "password",
		PasswordHash: &hash,
	})
	switch {
	case errors.Is(err, athletestore.ErrDuplicateEmail):
		renderErr("An account with this email already exists. Try signing in instead.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "create athlete", err, "A server error occurred.", "/login/register")
		return
	}

	h.AuditLog.AccountCreated(ctx, r, a.ID, "password", a.Email)
	h.completeSignIn(w, r, &a, ret)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) completeSignIn(w http.ResponseWriter, r *http.Request, a *models.Athlete, returnURL string) {
	if err := h.SessionMgr.Establish(w, r, a.ID.Hex()); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("email", a.Email))
		h.renderLoginError(w, r, "Unable to create session. Please try again.", a.Email, returnURL)
		return
	}

	h.AuditLog.LoginSuccess(r.Context(), r, a.ID, normalize.AuthMethod(a.AuthMethod), a.Email)

	dest := urlutil.SafeReturn(returnURL, "", "/")
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (h *Handler) renderLoginError(w http.ResponseWriter, r *http.Request, msg, email, ret string) {
	if ret == "" {
		ret = query.Get(r, "return")
	}
	templates.Render(w, r, "login", loginFormData{
		BaseVM:        viewdata.NewBaseVM(r, "Sign in", "/"),
		Error:         msg,
		Email:         email,
		ReturnURL:     ret,
		GoogleEnabled: h.GoogleEnabled,
	})
}
