// internal/app/features/crews/handler.go
package crews

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/errors"
	athletestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/athletes"
	crewstore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/crews"
	invitestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/invites"
	membershipstore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/memberships"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auditlog"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auth"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/htmlsanitize"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/invitecode"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/timeouts"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/viewdata"
	"github.com/GoFast-Athlete-Training/crewhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB          *mongo.Database
	Log         *zap.Logger
	ErrLog      *uierrors.ErrorLogger
	AuditLog    *auditlog.Logger
	Crews       *crewstore.Store
	Athletes    *athletestore.Store
	Invites     *invitestore.Store
	Memberships *membershipstore.Store
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:          db,
		Log:         logger,
		ErrLog:      errLog,
		AuditLog:    audit,
		Crews:       crewstore.New(db),
		Athletes:    athletestore.New(db),
		Invites:     invitestore.New(db),
		Memberships: membershipstore.New(db),
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template-data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type memberVM struct {
	Name    string
	Handle  string
	Role    string
	IsAdmin bool
}

type crewHomeData struct {
	viewdata.BaseVM
	CrewID      string
	CrewName    string
	Description template.HTML
	LogoURL     string
	Members     []memberVM
	MemberCount int
	IsAdmin     bool
}

type inviteVM struct {
	ID        string
	Code      string
	MaxUses   int
	Uses      int
	Unlimited bool
	Revoked   bool
	Expired   bool
	Consumed  bool
	ExpiresAt *time.Time
}

type manageData struct {
	viewdata.BaseVM
	CrewID      string
	CrewName    string
	Members     []memberVM
	MemberCount int
	Invites     []inviteVM
	Error       string
	NewCode     string // code just issued, highlighted for copying
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /crews/{crewID}                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeCrewHome shows the crew's landing page to its members.
func (h *Handler) ServeCrewHome(w http.ResponseWriter, r *http.Request) {
	u, crew, membership, ok := h.requireMember(w, r)
	if !ok {
		return
	}
	_ = u

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	members, count, err := h.loadMembers(ctx, crew)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load crew members", err, "A server error occurred.", "/")
		return
	}

	templates.Render(w, r, "crew_home", crewHomeData{
		BaseVM:      viewdata.NewBaseVM(r, crew.Name, "/"),
		CrewID:      crew.ID.Hex(),
		CrewName:    crew.Name,
		Description: htmlsanitize.PrepareForDisplay(crew.Description),
		LogoURL:     crew.LogoURL,
		Members:     members,
		MemberCount: count,
		IsAdmin:     membership.Role == models.RoleAdmin,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /crews/{crewID}/manage                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeManage shows the admin console: members plus invite management.
func (h *Handler) ServeManage(w http.ResponseWriter, r *http.Request) {
	_, crew, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	h.renderManage(w, r, crew, "", "")
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /crews/{crewID}/invites                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleCreateInvite issues a new invite code for the crew.
func (h *Handler) HandleCreateInvite(w http.ResponseWriter, r *http.Request) {
	u, crew, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/crews/"+crew.ID.Hex()+"/manage")
		return
	}

	maxUses := 0
	if v := strings.TrimSpace(r.FormValue("max_uses")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.renderManage(w, r, crew, "Max uses must be a non-negative number (0 = unlimited).", "")
			return
		}
		maxUses = n
	}

	var expiresAt *time.Time
	if v := strings.TrimSpace(r.FormValue("expires_days")); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			h.renderManage(w, r, crew, "Expiry must be a non-negative number of days.", "")
			return
		}
		if days > 0 {
			t := time.Now().UTC().AddDate(0, 0, days)
			expiresAt = &t
		}
	}

	// An empty code asks the store to generate one.
	code := strings.TrimSpace(r.FormValue("code"))
	if code != "" {
		if err := invitecode.Validate(invitecode.Normalize(code)); err != nil {
			h.renderManage(w, r, crew, "Custom codes must be 3-20 letters, digits, dashes, or underscores.", "")
			return
		}
	}

	issuerID, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad athlete id in session", err, "Invalid session.", "/")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	inv, err := h.Invites.Create(ctx, models.CrewInvite{
		Code:      code,
		CrewID:    crew.ID,
		IssuedBy:  issuerID,
		MaxUses:   maxUses,
		ExpiresAt: expiresAt,
	})
	switch {
	case errors.Is(err, invitestore.ErrDuplicateCode):
		h.renderManage(w, r, crew, "That code is already in use. Pick another.", "")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "create invite", err, "A server error occurred.", "/crews/"+crew.ID.Hex()+"/manage")
		return
	}

	h.AuditLog.InviteCreated(ctx, r, issuerID, crew.ID, inv.Code, inv.MaxUses)
	h.Log.Info("invite created",
		zap.String("crew_id", crew.ID.Hex()),
		zap.String("code", inv.Code))

	h.renderManage(w, r, crew, "", inv.Code)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /crews/{crewID}/invites/{inviteID}/revoke                              |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleRevokeInvite marks an invite revoked. Visitors holding the code
// find out at their next advance; nothing already committed is undone.
func (h *Handler) HandleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	u, crew, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	inviteID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "inviteID"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad invite id", err, "Invalid invite.", "/crews/"+crew.ID.Hex()+"/manage")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	// The invite must belong to this crew; a foreign id is a 404 not a
	// cross-crew revoke.
	invites, err := h.Invites.ListByCrew(ctx, crew.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list invites", err, "A server error occurred.", "/crews/"+crew.ID.Hex()+"/manage")
		return
	}
	var target *models.CrewInvite
	for i := range invites {
		if invites[i].ID == inviteID {
			target = &invites[i]
			break
		}
	}
	if target == nil {
		h.ErrLog.LogNotFound(w, r, "invite not in crew", invitestore.ErrNotFound, "That invite doesn't exist.", "/crews/"+crew.ID.Hex()+"/manage")
		return
	}

	if err := h.Invites.Revoke(ctx, inviteID); err != nil && !errors.Is(err, invitestore.ErrNotFound) {
		h.ErrLog.LogServerError(w, r, "revoke invite", err, "A server error occurred.", "/crews/"+crew.ID.Hex()+"/manage")
		return
	}

	if issuerID, idErr := primitive.ObjectIDFromHex(u.ID); idErr == nil {
		h.AuditLog.InviteRevoked(ctx, r, issuerID, crew.ID, target.Code)
	}
	h.Log.Info("invite revoked",
		zap.String("crew_id", crew.ID.Hex()),
		zap.String("code", target.Code))

	http.Redirect(w, r, "/crews/"+crew.ID.Hex()+"/manage", http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Access checks                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) loadCrewFromPath(w http.ResponseWriter, r *http.Request) (*models.Crew, bool) {
	crewID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "crewID"))
	if err != nil {
		uierrors.RenderNotFound(w, r, "That crew doesn't exist.", "/")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	crew, err := h.Crews.GetByID(ctx, crewID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderNotFound(w, r, "That crew doesn't exist.", "/")
		return nil, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load crew", err, "A server error occurred.", "/")
		return nil, false
	}
	return crew, true
}

// requireMember loads the crew and verifies the signed-in athlete belongs
// to it.
func (h *Handler) requireMember(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, *models.Crew, *models.CrewMembership, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return nil, nil, nil, false
	}
	crew, ok := h.loadCrewFromPath(w, r)
	if !ok {
		return nil, nil, nil, false
	}

	athleteID, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		uierrors.RenderForbidden(w, r, "You are not a member of this crew.", "/")
		return nil, nil, nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, err := h.Memberships.Get(ctx, crew.ID, athleteID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderForbidden(w, r, "You are not a member of this crew.", "/")
		return nil, nil, nil, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load membership", err, "A server error occurred.", "/")
		return nil, nil, nil, false
	}
	return u, crew, m, true
}

// requireAdmin is requireMember plus the admin role check.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, *models.Crew, bool) {
	u, crew, m, ok := h.requireMember(w, r)
	if !ok {
		return nil, nil, false
	}
	if m.Role != models.RoleAdmin {
		uierrors.RenderForbidden(w, r, "Only the crew admin can manage invites.", "/crews/"+crew.ID.Hex())
		return nil, nil, false
	}
	return u, crew, true
}

/*─────────────────────────────────────────────────────────────────────────────*
| Rendering                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) loadMembers(ctx context.Context, crew *models.Crew) ([]memberVM, int, error) {
	ms, err := h.Memberships.ListByCrew(ctx, crew.ID)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]primitive.ObjectID, 0, len(ms))
	roleByID := make(map[primitive.ObjectID]string, len(ms))
	for _, m := range ms {
		ids = append(ids, m.AthleteID)
		roleByID[m.AthleteID] = m.Role
	}

	athletes, err := h.Athletes.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	// Admin first, then members in fetch order.
	vms := make([]memberVM, 0, len(athletes))
	for _, a := range athletes {
		vm := memberVM{
			Name:    a.FullName,
			Handle:  a.Handle,
			Role:    roleByID[a.ID],
			IsAdmin: roleByID[a.ID] == models.RoleAdmin,
		}
		if vm.IsAdmin {
			vms = append([]memberVM{vm}, vms...)
		} else {
			vms = append(vms, vm)
		}
	}
	return vms, len(ms), nil
}

func (h *Handler) renderManage(w http.ResponseWriter, r *http.Request, crew *models.Crew, errMsg, newCode string) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	members, count, err := h.loadMembers(ctx, crew)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load crew members", err, "A server error occurred.", "/")
		return
	}

	invites, err := h.Invites.ListByCrew(ctx, crew.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list invites", err, "A server error occurred.", "/")
		return
	}

	now := time.Now()
	vms := make([]inviteVM, 0, len(invites))
	for _, inv := range invites {
		vms = append(vms, inviteVM{
			ID:        inv.ID.Hex(),
			Code:      inv.Code,
			MaxUses:   inv.MaxUses,
			Uses:      inv.Uses,
			Unlimited: inv.MaxUses == 0,
			Revoked:   inv.Revoked,
			Expired:   inv.ExpiresAt != nil && now.After(*inv.ExpiresAt),
			Consumed:  inv.MaxUses > 0 && inv.Uses >= inv.MaxUses,
			ExpiresAt: inv.ExpiresAt,
		})
	}

	templates.Render(w, r, "crew_manage", manageData{
		BaseVM:      viewdata.NewBaseVM(r, "Manage "+crew.Name, "/crews/"+crew.ID.Hex()),
		CrewID:      crew.ID.Hex(),
		CrewName:    crew.Name,
		Members:     members,
		MemberCount: count,
		Invites:     vms,
		Error:       errMsg,
		NewCode:     newCode,
	})
}
