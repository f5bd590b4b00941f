// internal/domain/models/athlete.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Athlete represents an account in the running community.
//
// NOTE:
//   - Crew membership is not embedded on Athlete.
//     Use the crew_memberships collection to discover an athlete's crews.
//   - Handle is the stable public username. A newly provisioned account
//     (for example one created during a Google sign-in) has an empty
//     handle until the athlete completes their profile.
type Athlete struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`
	Handle     string             `bson:"handle,omitempty" json:"handle,omitempty"`
	HandleCI   string             `bson:"handle_ci,omitempty" json:"handle_ci,omitempty"`
	AuthMethod string             `bson:"auth_method,omitempty" json:"auth_method,omitempty"` // password | google

	// AuthReturnID is the identity provider's stable subject identifier
	// (the Google account ID for google auth).
	AuthReturnID *string `bson:"auth_return_id,omitempty" json:"-"`

	// PasswordHash is the bcrypt hash for password auth. Never serialized.
	PasswordHash *string `bson:"password_hash,omitempty" json:"-"`

	Status string `bson:"status,omitempty" json:"status,omitempty"` // active | disabled

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ProfileComplete reports whether the account carries enough profile data
// to join a crew. A stable handle is the only required field.
func (a *Athlete) ProfileComplete() bool {
	return a != nil && a.Handle != ""
}
