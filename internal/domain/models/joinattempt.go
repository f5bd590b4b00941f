// internal/domain/models/joinattempt.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JoinAttempt is the ledger record of a committed join attempt, keyed by
// the attempt token. Replaying a commit with a token that already has a
// ledger entry returns the recorded outcome instead of re-running the
// join, which is what makes retried and resumed commits safe.
type JoinAttempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	AttemptToken string             `bson:"attempt_token"`
	AthleteID    primitive.ObjectID `bson:"athlete_id"`
	CrewID       primitive.ObjectID `bson:"crew_id"`
	MembershipID primitive.ObjectID `bson:"membership_id"`
	Role         string             `bson:"role"`
	InviteCode   string             `bson:"invite_code"`

	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"` // TTL index field
}
