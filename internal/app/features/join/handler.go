// internal/app/features/join/handler.go
package join

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	uierrors "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/errors"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/onboarding"
	athletestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/athletes"
	crewstore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/crews"
	invitestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/invites"
	membershipstore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/memberships"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auditlog"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auth"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/ratelimit"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/timeouts"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// visitorCookie carries the opaque key the checkpoint store is indexed
// by. It is not an auth credential; it only lets an anonymous visitor
// resume their own onboarding flow, including across the sign-in
// redirect.
const (
	visitorCookie       = "crewhub_visitor"
	visitorCookieMaxAge = int(7 * 24 * time.Hour / time.Second)
)

type Handler struct {
	DB         *mongo.Database
	Log        *zap.Logger
	Saga       *onboarding.Controller
	Crews      *crewstore.Store
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.Limiter // slows invite-code guessing per IP
	SecureCook bool               // mark the visitor cookie Secure in production
}

// NewHandler wires the onboarding saga over the mongo-backed stores.
func NewHandler(
	db *mongo.Database,
	checkpoints onboarding.CheckpointStore,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	secureCookies bool,
	logger *zap.Logger,
) *Handler {
	crews := crewstore.New(db)
	resolver := &inviteResolver{
		invites:     invitestore.New(db),
		crews:       crews,
		athletes:    athletestore.New(db),
		memberships: membershipstore.New(db),
	}
	executor := &joinExecutor{memberships: membershipstore.New(db).WithLogger(logger)}

	return &Handler{
		DB:         db,
		Log:        logger,
		Saga:       onboarding.New(checkpoints, sessionIdentity{}, resolver, onboarding.HandleGate{}, executor, logger),
		Crews:      crews,
		ErrLog:     errLog,
		AuditLog:   audit,
		Limiter:    ratelimit.New(20, time.Minute),
		SecureCook: secureCookies,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template-data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type enterFormData struct {
	viewdata.BaseVM
	Error string
	Code  string // what the visitor typed, redisplayed on error
}

type signInData struct {
	viewdata.BaseVM
	CrewName    string
	AdminName   string
	MemberCount int
	Description string
	LogoURL     string
}

type retryData struct {
	viewdata.BaseVM
	CrewName string
}

type expiredData struct {
	viewdata.BaseVM
	Message string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /join                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeJoin handles the entry screen. An invite link like
// /join?code=FAST123 advances immediately with that code.
func (h *Handler) ServeJoin(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, query.Get(r, "code"))
}

// HandleJoinPost handles the invite code form submission.
func (h *Handler) HandleJoinPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/join")
		return
	}

	code := strings.TrimSpace(r.FormValue("code"))
	if code != "" && !h.Limiter.Allow(ratelimit.ClientIP(r)) {
		h.renderEnter(w, r, "Too many invite codes tried. Please wait a minute.", code)
		return
	}
	h.advance(w, r, code)
}

// ServeContinue resumes the saga with no new code: page reloads,
// returns from sign-in, and returns from profile completion all land
// here.
func (h *Handler) ServeContinue(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, "")
}

// HandleRetry re-advances after a transient join failure. The checkpoint
// still holds the attempt token, so the commit is re-sent, not re-made.
func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, "")
}

// HandleCancel abandons the flow and clears the checkpoint.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	key := h.visitorKey(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	code := ""
	if cp, err := h.Saga.Current(ctx, key); err == nil && cp != nil {
		code = cp.InviteCode
	}
	if err := h.Saga.Cancel(ctx, key); err != nil {
		h.ErrLog.LogServerError(w, r, "cancel onboarding", err, "A server error occurred.", "/join")
		return
	}

	var athleteID *primitive.ObjectID
	if u, ok := auth.CurrentUser(r); ok {
		if oid, err := primitive.ObjectIDFromHex(u.ID); err == nil {
			athleteID = &oid
		}
	}
	h.AuditLog.JoinAbandoned(ctx, r, athleteID, code)

	http.Redirect(w, r, "/join", http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Saga advance & directive routing                                            |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) advance(w http.ResponseWriter, r *http.Request, code string) {
	key := h.visitorKey(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	d, err := h.Saga.Advance(ctx, key, code)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "saga advance", err, "A server error occurred.", "/join")
		return
	}

	switch d.Kind {
	case onboarding.DirectiveEnterInvite:
		msg := ""
		if d.Err != nil {
			msg = "We couldn't reach the server. Please try again."
		}
		h.renderEnter(w, r, msg, "")

	case onboarding.DirectiveInviteInvalid:
		msg := "That invite code isn't valid. Check it and try again."
		if errors.Is(d.Err, onboarding.ErrInvalidFormat) {
			msg = "Invite codes are 3-20 letters, digits, dashes, or underscores."
		}
		h.renderEnter(w, r, msg, code)

	case onboarding.DirectiveShowSignIn:
		h.renderSignIn(w, r, d)

	case onboarding.DirectiveCompleteProfile:
		http.Redirect(w, r, "/profile?return=/join/continue", http.StatusSeeOther)

	case onboarding.DirectiveRetryJoin:
		h.renderRetry(w, r, d)

	case onboarding.DirectiveInviteExpired:
		templates.Render(w, r, "join_expired", expiredData{
			BaseVM:  viewdata.NewBaseVM(r, "Invite no longer valid", "/join"),
			Message: "This invite has already been used. Ask your crew admin for a new one.",
		})

	case onboarding.DirectiveGoToCrewHome:
		h.recordCommit(ctx, r, d)
		http.Redirect(w, r, roleHomePath(d.CrewID, d.Role), http.StatusSeeOther)

	default:
		h.Log.Error("unknown saga directive", zap.String("kind", string(d.Kind)))
		h.renderEnter(w, r, "", "")
	}
}

func (h *Handler) renderEnter(w http.ResponseWriter, r *http.Request, errMsg, code string) {
	templates.Render(w, r, "join_enter", enterFormData{
		BaseVM: viewdata.NewBaseVM(r, "Join a Crew", "/"),
		Error:  errMsg,
		Code:   code,
	})
}

func (h *Handler) renderSignIn(w http.ResponseWriter, r *http.Request, d *onboarding.Directive) {
	data := signInData{
		BaseVM: viewdata.NewBaseVM(r, "Sign in to join", "/join"),
	}
	if d.Preview != nil {
		data.CrewName = d.Preview.Name
		data.AdminName = d.Preview.AdminName
		data.MemberCount = d.Preview.MemberCount
		data.Description = d.Preview.Description
		data.LogoURL = d.Preview.LogoURL
	} else if crew := h.loadCrew(r, d.CrewID); crew != nil {
		data.CrewName = crew.Name
		data.Description = crew.Description
		data.LogoURL = crew.LogoURL
	}
	templates.Render(w, r, "join_signin", data)
}

func (h *Handler) renderRetry(w http.ResponseWriter, r *http.Request, d *onboarding.Directive) {
	data := retryData{
		BaseVM: viewdata.NewBaseVM(r, "Almost there", "/join"),
	}
	if crew := h.loadCrew(r, d.CrewID); crew != nil {
		data.CrewName = crew.Name
	}
	templates.Render(w, r, "join_retry", data)
}

func (h *Handler) loadCrew(r *http.Request, crewID string) *crewDisplay {
	oid, err := primitive.ObjectIDFromHex(crewID)
	if err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	crew, err := h.Crews.GetByID(ctx, oid)
	if err != nil {
		return nil
	}
	return &crewDisplay{Name: crew.Name, Description: crew.Description, LogoURL: crew.LogoURL}
}

type crewDisplay struct {
	Name        string
	Description string
	LogoURL     string
}

func (h *Handler) recordCommit(ctx context.Context, r *http.Request, d *onboarding.Directive) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return
	}
	athleteID, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return
	}
	crewID, err := primitive.ObjectIDFromHex(d.CrewID)
	if err != nil {
		return
	}
	h.AuditLog.JoinCommitted(ctx, r, athleteID, crewID, d.InviteCode, d.Role, false)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Visitor cookie                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// visitorKey returns the visitor token from the cookie, minting and
// setting one when absent.
func (h *Handler) visitorKey(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(visitorCookie); err == nil && c.Value != "" {
		return c.Value
	}
	key := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    key,
		Path:     "/",
		MaxAge:   visitorCookieMaxAge,
		HttpOnly: true,
		Secure:   h.SecureCook,
		SameSite: http.SameSiteLaxMode,
	})
	return key
}
