// internal/app/features/join/adapters.go
package join

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/onboarding"
	athletestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/athletes"
	crewstore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/crews"
	invitestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/invites"
	membershipstore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/memberships"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auth"
	"github.com/GoFast-Athlete-Training/crewhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// sessionIdentity resolves the onboarding identity from the request
// context the session middleware populated. Because LoadSessionUser
// fetches a fresh athlete per request, a non-nil answer here is a live
// authentication fact, not a cached one.
type sessionIdentity struct{}

func (sessionIdentity) CurrentIdentity(ctx context.Context) (*onboarding.Identity, error) {
	u, ok := auth.CurrentUserFromContext(ctx)
	if !ok || u == nil {
		return nil, nil
	}
	return &onboarding.Identity{
		AthleteID: u.ID,
		Name:      u.Name,
		Email:     u.LoginID,
		Handle:    u.Handle,
	}, nil
}

// inviteResolver produces crew previews for usable invite codes. Reads
// only; the membership store re-validates everything at commit time.
type inviteResolver struct {
	invites     *invitestore.Store
	crews       *crewstore.Store
	athletes    *athletestore.Store
	memberships *membershipstore.Store
}

func (a *inviteResolver) Resolve(ctx context.Context, code string) (*onboarding.CrewPreview, error) {
	inv, err := a.invites.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, invitestore.ErrNotFound) {
			return nil, onboarding.ErrInviteNotFound
		}
		return nil, fmt.Errorf("%w: %v", onboarding.ErrUnavailable, err)
	}
	if !inv.Usable(time.Now()) {
		return nil, onboarding.ErrInviteNotFound
	}

	crew, err := a.crews.GetByID(ctx, inv.CrewID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", onboarding.ErrUnavailable, err)
	}

	preview := &onboarding.CrewPreview{
		CrewID:      crew.ID.Hex(),
		Name:        crew.Name,
		Description: crew.Description,
		LogoURL:     crew.LogoURL,
	}

	// Admin name and member count are display garnish; a miss never
	// fails the resolve.
	if admin, err := a.athletes.GetByID(ctx, crew.AdminAthleteID); err == nil {
		preview.AdminName = admin.FullName
	}
	if n, err := a.memberships.CountByCrew(ctx, crew.ID, ""); err == nil {
		preview.MemberCount = int(n)
	}

	return preview, nil
}

// joinExecutor sends the commit to the membership store and classifies
// its failures into the sentinels the saga reacts to.
type joinExecutor struct {
	memberships *membershipstore.Store
}

func (a *joinExecutor) Commit(ctx context.Context, id onboarding.Identity, inviteCode, attemptToken string) (*onboarding.CommitResult, error) {
	athleteID, err := primitive.ObjectIDFromHex(id.AthleteID)
	if err != nil {
		return nil, onboarding.ErrUnauthorized
	}

	res, err := a.memberships.Commit(ctx, athleteID, inviteCode, attemptToken)
	if err != nil {
		switch {
		case errors.Is(err, membershipstore.ErrInviteNotFound):
			return nil, onboarding.ErrInviteNotFound
		case errors.Is(err, membershipstore.ErrInviteConsumed):
			return nil, onboarding.ErrInviteConsumed
		case errors.Is(err, membershipstore.ErrAthleteNotFound):
			return nil, onboarding.ErrUnauthorized
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %v", onboarding.ErrUnavailable, err)
		}
	}

	return &onboarding.CommitResult{
		MembershipID:  res.MembershipID.Hex(),
		CrewID:        res.CrewID.Hex(),
		Role:          res.Role,
		AlreadyMember: res.AlreadyMember,
	}, nil
}

// roleHomePath routes a committed member to their crew destination.
func roleHomePath(crewID, role string) string {
	if role == models.RoleAdmin {
		return "/crews/" + crewID + "/manage"
	}
	return "/crews/" + crewID
}
