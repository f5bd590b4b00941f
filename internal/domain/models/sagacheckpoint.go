// internal/domain/models/sagacheckpoint.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SagaCheckpoint is the persisted record of one visitor's progress through
// the invite-to-membership onboarding flow. It is keyed by an opaque
// visitor token carried in a cookie, so it survives page reloads and the
// round trip through an external sign-in redirect.
//
// The onboarding controller is the only writer. AttemptToken is generated
// once per invite code entering the flow and is never regenerated while
// the code stays the same; that is what makes resumed commits idempotent.
type SagaCheckpoint struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty"`
	VisitorToken string              `bson:"visitor_token"`
	InviteCode   string              `bson:"invite_code"`
	CrewID       *primitive.ObjectID `bson:"crew_id,omitempty"`
	Stage        string              `bson:"stage"`
	AttemptToken string              `bson:"attempt_token"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
	ExpiresAt time.Time `bson:"expires_at"` // TTL index field
}
