// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auditlog"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// ServeLogout handles GET /logout.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	athleteID := ""
	if u, ok := auth.CurrentUser(r); ok {
		athleteID = u.ID
	}

	if err := h.SessionMgr.Destroy(w, r); err != nil {
		h.Log.Error("logout: destroy session", zap.Error(err))
	}

	if athleteID != "" {
		h.AuditLog.Logout(r.Context(), r, athleteID)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
