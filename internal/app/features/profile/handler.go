// internal/app/features/profile/handler.go
package profile

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/errors"
	athletestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/athletes"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auth"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/timeouts"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	handleMinLen = 3
	handleMaxLen = 30
)

// Handler owns the athlete profile screens. The profile page doubles as
// the completion gate in the join flow: a Google-provisioned account
// lands here to pick a handle before the join can commit.
type Handler struct {
	DB       *mongo.Database
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	Athletes *athletestore.Store
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Log:      logger,
		ErrLog:   errLog,
		Athletes: athletestore.New(db),
	}
}

type profileData struct {
	viewdata.BaseVM
	Error     string
	Success   string
	FullName  string
	Email     string
	Handle    string
	ReturnURL string

	// NeedsHandle flags the profile-completion framing used mid-join.
	NeedsHandle bool
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /profile                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad athlete id in session", err, "Invalid session.", "/")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Athletes.GetByID(ctx, oid)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load athlete", err, "A server error occurred.", "/")
		return
	}

	templates.Render(w, r, "profile", profileData{
		BaseVM:      viewdata.NewBaseVM(r, "Your Profile", "/"),
		FullName:    a.FullName,
		Email:       a.Email,
		Handle:      a.Handle,
		ReturnURL:   query.Get(r, "return"),
		NeedsHandle: !a.ProfileComplete(),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /profile                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleProfilePost(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/profile")
		return
	}

	fullName := strings.TrimSpace(r.FormValue("full_name"))
	handle := strings.TrimSpace(r.FormValue("handle"))
	ret := strings.TrimSpace(r.FormValue("return"))

	renderErr := func(msg string) {
		templates.Render(w, r, "profile", profileData{
			BaseVM:      viewdata.NewBaseVM(r, "Your Profile", "/"),
			Error:       msg,
			FullName:    fullName,
			Email:       u.LoginID,
			Handle:      handle,
			ReturnURL:   ret,
			NeedsHandle: u.Handle == "",
		})
	}

	if fullName == "" {
		renderErr("Please enter your name.")
		return
	}
	if handle == "" {
		renderErr("Please pick a handle.")
		return
	}
	if err := validateHandle(handle); err != nil {
		renderErr(err.Error())
		return
	}

	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad athlete id in session", err, "Invalid session.", "/")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	err = h.Athletes.UpdateProfile(ctx, oid, athletestore.ProfileUpdate{
		FullName: fullName,
		Handle:   handle,
	})
	switch {
	case errors.Is(err, athletestore.ErrDuplicateHandle):
		renderErr("That handle is already taken. Try another.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "update profile", err, "A server error occurred.", "/profile")
		return
	}

	h.Log.Info("profile updated",
		zap.String("athlete_id", u.ID),
		zap.String("handle", handle))

	// Mid-join the return param points back at /join/continue so the
	// saga picks up where it left off.
	if ret != "" {
		http.Redirect(w, r, urlutil.SafeReturn(ret, "", "/"), http.StatusSeeOther)
		return
	}

	templates.Render(w, r, "profile", profileData{
		BaseVM:   viewdata.NewBaseVM(r, "Your Profile", "/"),
		Success:  "Profile saved.",
		FullName: fullName,
		Email:    u.LoginID,
		Handle:   handle,
	})
}

// validateHandle checks the handle charset and length. Handles are
// lowercase alphanumerics plus dash and underscore; normalization to
// lowercase happens in the store.
func validateHandle(handle string) error {
	if len(handle) < handleMinLen || len(handle) > handleMaxLen {
		return errors.New("Handles must be 3-30 characters long.")
	}
	for i := 0; i < len(handle); i++ {
		c := handle[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return errors.New("Handles may only contain letters, digits, dashes, and underscores.")
		}
	}
	return nil
}
