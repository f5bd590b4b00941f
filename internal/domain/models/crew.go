// internal/domain/models/crew.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Crew represents a running crew: the social unit athletes join.
//
// NOTE:
//   - Member lists are not embedded on Crew.
//     All membership is stored in the crew_memberships collection.
//   - AdminAthleteID is the crew's manager. At join time it is the sole
//     source of truth for whether the joining athlete gets the admin role.
type Crew struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"name_ci"`
	Description string             `bson:"description" json:"description"`
	LogoURL     string             `bson:"logo_url,omitempty" json:"logo_url,omitempty"`

	AdminAthleteID primitive.ObjectID `bson:"admin_athlete_id" json:"admin_athlete_id"`

	Status string `bson:"status" json:"status"` // active | archived

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
