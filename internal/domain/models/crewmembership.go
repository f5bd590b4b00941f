// internal/domain/models/crewmembership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Membership roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// CrewMembership is the authoritative join between athletes and crews.
// Exactly one document per (crew_id, athlete_id); role is a scalar
// ("admin" | "member").
//
// AttemptToken records the idempotency key of the join attempt that
// created the membership. Re-sending a commit with the same token finds
// this document instead of creating a second one.
type CrewMembership struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CrewID       primitive.ObjectID `bson:"crew_id" json:"crew_id"`
	AthleteID    primitive.ObjectID `bson:"athlete_id" json:"athlete_id"`
	Role         string             `bson:"role" json:"role"`
	InviteCode   string             `bson:"invite_code,omitempty" json:"invite_code,omitempty"`
	AttemptToken string             `bson:"attempt_token,omitempty" json:"-"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}
