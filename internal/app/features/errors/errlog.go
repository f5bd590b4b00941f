// internal/app/features/errors/errlog.go
package errors

import (
	"net/http"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auth"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// ErrorLogger pairs structured logging with user-facing error pages so
// handlers can report a failure in one call. The zap message carries the
// internal detail; the visitor only sees the friendly text.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// LogBadRequest logs a client error and renders a 400 page.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, op string, err error, userMsg, backURL string) {
	e.log.Warn("bad request",
		zap.String("op", op),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	e.render(w, r, http.StatusBadRequest, "Invalid request", userMsg, backURL)
}

// LogServerError logs a server-side failure and renders a 500 page.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, op string, err error, userMsg, backURL string) {
	e.log.Error("server error",
		zap.String("op", op),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	e.render(w, r, http.StatusInternalServerError, "Something went wrong", userMsg, backURL)
}

// LogNotFound logs a lookup miss and renders a 404 page.
func (e *ErrorLogger) LogNotFound(w http.ResponseWriter, r *http.Request, op string, err error, userMsg, backURL string) {
	e.log.Info("not found",
		zap.String("op", op),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	e.render(w, r, http.StatusNotFound, "Not found", userMsg, backURL)
}

func (e *ErrorLogger) render(w http.ResponseWriter, r *http.Request, status int, title, msg, backURL string) {
	name, signed := "", false
	if u, ok := auth.CurrentUser(r); ok && u != nil {
		name, signed = u.Name, true
	}
	if backURL == "" {
		backURL = "/"
	}

	w.WriteHeader(status)
	templates.Render(w, r, "error_page", pageData{
		Title:      title,
		IsLoggedIn: signed,
		UserName:   name,
		Message:    msg,
		BackURL:    backURL,
	})
}
