// internal/domain/models/crewinvite.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CrewInvite is a short code that identifies a crew and authorizes joins.
//
// MaxUses caps how many successful joins the code permits (0 = unlimited).
// Uses counts committed joins; the membership store increments it as part
// of the commit, so a code with Uses == MaxUses is consumed.
type CrewInvite struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code     string             `bson:"code" json:"code"` // normalized (uppercase)
	CrewID   primitive.ObjectID `bson:"crew_id" json:"crew_id"`
	IssuedBy primitive.ObjectID `bson:"issued_by" json:"issued_by"`

	MaxUses int `bson:"max_uses" json:"max_uses"` // 0 = unlimited
	Uses    int `bson:"uses" json:"uses"`

	ExpiresAt *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	Revoked   bool       `bson:"revoked,omitempty" json:"revoked,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Usable reports whether the invite can still authorize a join at the
// given instant. It does not check the use budget; the membership store
// enforces that atomically at commit time.
func (i *CrewInvite) Usable(now time.Time) bool {
	if i == nil || i.Revoked {
		return false
	}
	if i.ExpiresAt != nil && now.After(*i.ExpiresAt) {
		return false
	}
	return true
}
