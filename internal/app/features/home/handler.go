// internal/app/features/home/handler.go
package home

import (
	"context"
	"net/http"

	uierrors "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/errors"
	crewstore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/crews"
	membershipstore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/memberships"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auth"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/timeouts"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/viewdata"
	"github.com/GoFast-Athlete-Training/crewhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler holds dependencies needed to serve the landing page.
type Handler struct {
	DB          *mongo.Database
	Log         *zap.Logger
	ErrLog      *uierrors.ErrorLogger
	Crews       *crewstore.Store
	Memberships *membershipstore.Store
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:          db,
		Log:         logger,
		ErrLog:      errLog,
		Crews:       crewstore.New(db),
		Memberships: membershipstore.New(db),
	}
}

type crewLink struct {
	ID   string
	Name string
	Role string
}

type homeData struct {
	viewdata.BaseVM
	MyCrews []crewLink
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – landing                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeRoot shows the invite entry box, plus the visitor's crews when
// they are signed in.
func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	data := homeData{
		BaseVM: viewdata.NewBaseVM(r, "Welcome", "/"),
	}

	if u, ok := auth.CurrentUser(r); ok {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
		defer cancel()

		links, err := h.myCrews(ctx, u.ID)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "load my crews", err, "A server error occurred.", "/")
			return
		}
		data.MyCrews = links
	}

	templates.Render(w, r, "home", data)
}

func (h *Handler) myCrews(ctx context.Context, athleteID string) ([]crewLink, error) {
	id, err := primitive.ObjectIDFromHex(athleteID)
	if err != nil {
		return nil, nil
	}

	ms, err := h.Memberships.ListByAthlete(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, 0, len(ms))
	roleByCrew := make(map[primitive.ObjectID]string, len(ms))
	for _, m := range ms {
		ids = append(ids, m.CrewID)
		roleByCrew[m.CrewID] = m.Role
	}

	crews, err := h.Crews.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]models.Crew, len(crews))
	for _, c := range crews {
		byID[c.ID] = c
	}

	// Preserve membership order, newest join first.
	links := make([]crewLink, 0, len(ms))
	for _, m := range ms {
		c, ok := byID[m.CrewID]
		if !ok {
			continue
		}
		links = append(links, crewLink{
			ID:   c.ID.Hex(),
			Name: c.Name,
			Role: roleByCrew[c.ID],
		})
	}
	return links, nil
}
