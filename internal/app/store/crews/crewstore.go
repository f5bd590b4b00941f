package crewstore

import (
	"context"
	"errors"
	"time"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/normalize"
	"github.com/GoFast-Athlete-Training/crewhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateName is returned when creating a crew whose name collides
// case-insensitively with an existing crew.
var ErrDuplicateName = errors.New("a crew with this name already exists")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("crews")}
}

// EnsureIndexes creates the crews indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "admin_athlete_id", Value: 1}},
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// GetByID loads a crew by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Crew, error) {
	var c models.Crew
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new crew with the given admin.
func (s *Store) Create(ctx context.Context, c models.Crew) (models.Crew, error) {
	c.ID = primitive.NewObjectID()
	c.Name = normalize.Name(c.Name)
	c.NameCI = text.Fold(c.Name)
	if c.Status == "" {
		c.Status = "active"
	}

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, c); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Crew{}, ErrDuplicateName
		}
		return models.Crew{}, err
	}
	return c, nil
}

// Update sets the crew's editable fields.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, name, description, logoURL string) error {
	name = normalize.Name(name)
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"name":        name,
		"name_ci":     text.Fold(name),
		"description": description,
		"logo_url":    logoURL,
		"updated_at":  time.Now(),
	}})
	if wafflemongo.IsDup(err) {
		return ErrDuplicateName
	}
	return err
}

// ListByAdmin returns the crews administered by the given athlete.
func (s *Store) ListByAdmin(ctx context.Context, adminID primitive.ObjectID) ([]models.Crew, error) {
	cur, err := s.c.Find(ctx, bson.M{"admin_athlete_id": adminID},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var crews []models.Crew
	if err := cur.All(ctx, &crews); err != nil {
		return nil, err
	}
	return crews, nil
}

// GetByIDs loads several crews at once, for membership listings.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Crew, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var crews []models.Crew
	if err := cur.All(ctx, &crews); err != nil {
		return nil, err
	}
	return crews, nil
}
