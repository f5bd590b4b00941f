package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/GoFast-Athlete-Training/crewhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateAthlete creates an active test athlete with a handle derived from
// the name, so the profile counts as complete.
func (f *Fixtures) CreateAthlete(ctx context.Context, fullName, email string) models.Athlete {
	f.t.Helper()

	now := time.Now().UTC()
	handle := text.Fold(fullName)
	athlete := models.Athlete{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		Handle:     handle,
		HandleCI:   handle,
		AuthMethod: "password",
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := f.db.Collection("athletes").InsertOne(ctx, athlete); err != nil {
		f.t.Fatalf("failed to create test athlete: %v", err)
	}
	return athlete
}

// CreateAthleteWithoutHandle creates an athlete mid-onboarding: an
// account that exists but has not completed its profile.
func (f *Fixtures) CreateAthleteWithoutHandle(ctx context.Context, fullName, email string) models.Athlete {
	f.t.Helper()

	now := time.Now().UTC()
	athlete := models.Athlete{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		AuthMethod: "google",
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := f.db.Collection("athletes").InsertOne(ctx, athlete); err != nil {
		f.t.Fatalf("failed to create test athlete: %v", err)
	}
	return athlete
}

// CreateCrew creates an active test crew administered by adminID.
func (f *Fixtures) CreateCrew(ctx context.Context, name string, adminID primitive.ObjectID) models.Crew {
	f.t.Helper()

	now := time.Now().UTC()
	crew := models.Crew{
		ID:             primitive.NewObjectID(),
		Name:           name,
		NameCI:         text.Fold(name),
		Description:    "Test crew description",
		AdminAthleteID: adminID,
		Status:         "active",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := f.db.Collection("crews").InsertOne(ctx, crew); err != nil {
		f.t.Fatalf("failed to create test crew: %v", err)
	}
	return crew
}

// CreateInvite creates an invite for a crew. maxUses 0 means unlimited.
func (f *Fixtures) CreateInvite(ctx context.Context, crewID, issuedBy primitive.ObjectID, code string, maxUses int) models.CrewInvite {
	f.t.Helper()
	return f.insertInvite(ctx, crewID, issuedBy, code, maxUses, nil)
}

// CreateInviteExpiring creates an unlimited-use invite with an explicit expiry.
func (f *Fixtures) CreateInviteExpiring(ctx context.Context, crewID, issuedBy primitive.ObjectID, code string, expiresAt *time.Time) models.CrewInvite {
	f.t.Helper()
	return f.insertInvite(ctx, crewID, issuedBy, code, 0, expiresAt)
}

func (f *Fixtures) insertInvite(ctx context.Context, crewID, issuedBy primitive.ObjectID, code string, maxUses int, expiresAt *time.Time) models.CrewInvite {
	f.t.Helper()

	inv := models.CrewInvite{
		ID:        primitive.NewObjectID(),
		Code:      code,
		CrewID:    crewID,
		IssuedBy:  issuedBy,
		MaxUses:   maxUses,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := f.db.Collection("crew_invites").InsertOne(ctx, inv); err != nil {
		f.t.Fatalf("failed to create test invite: %v", err)
	}
	return inv
}

// GetInvite reloads an invite by code.
func (f *Fixtures) GetInvite(ctx context.Context, code string) models.CrewInvite {
	f.t.Helper()

	var inv models.CrewInvite
	if err := f.db.Collection("crew_invites").FindOne(ctx, bson.M{"code": code}).Decode(&inv); err != nil {
		f.t.Fatalf("failed to load test invite %q: %v", code, err)
	}
	return inv
}

// RevokeInvite marks an invite revoked.
func (f *Fixtures) RevokeInvite(ctx context.Context, id primitive.ObjectID) {
	f.t.Helper()

	_, err := f.db.Collection("crew_invites").UpdateOne(ctx,
		bson.M{"_id": id}, bson.M{"$set": bson.M{"revoked": true}})
	if err != nil {
		f.t.Fatalf("failed to revoke test invite: %v", err)
	}
}

// CreateMembership creates a membership record directly, bypassing the
// join commit path.
func (f *Fixtures) CreateMembership(ctx context.Context, crewID, athleteID primitive.ObjectID, role string) models.CrewMembership {
	f.t.Helper()

	m := models.CrewMembership{
		ID:        primitive.NewObjectID(),
		CrewID:    crewID,
		AthleteID: athleteID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := f.db.Collection("crew_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}
