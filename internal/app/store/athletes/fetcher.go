package athletestore

import (
	"context"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auth"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/normalize"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/timeouts"
	"github.com/GoFast-Athlete-Training/crewhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Fetcher implements auth.UserFetcher to load fresh athlete data on each
// request. Disabled accounts resolve to nil so their sessions stop working
// immediately.
type Fetcher struct {
	athletes *mongo.Collection
}

// NewFetcher creates a UserFetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{athletes: db.Collection("athletes")}
}

// FetchSessionUser retrieves an athlete by ID. A nil, nil return means the
// session should be treated as anonymous (unknown id, disabled account).
func (f *Fetcher) FetchSessionUser(ctx context.Context, athleteID string) (*auth.SessionUser, error) {
	oid, err := primitive.ObjectIDFromHex(athleteID)
	if err != nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var a models.Athlete
	proj := options.FindOne().SetProjection(bson.M{
		"_id":       1,
		"full_name": 1,
		"email":     1,
		"handle":    1,
		"status":    1,
	})
	if err := f.athletes.FindOne(ctx, bson.M{"_id": oid}, proj).Decode(&a); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	if normalize.Status(a.Status) == "disabled" {
		return nil, nil
	}

	return &auth.SessionUser{
		ID:      a.ID.Hex(),
		Name:    a.FullName,
		LoginID: a.Email,
		Handle:  a.Handle,
	}, nil
}
