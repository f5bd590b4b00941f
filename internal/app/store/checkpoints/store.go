// internal/app/store/checkpoints/store.go
package checkpoints

import (
	"context"
	"errors"
	"time"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/onboarding"
	"github.com/GoFast-Athlete-Training/crewhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// checkpointTTL is how long an idle onboarding checkpoint stays resumable.
// Each Save pushes the expiry forward, so only abandoned flows expire.
const checkpointTTL = 7 * 24 * time.Hour

// Store persists onboarding checkpoints in MongoDB, keyed by the opaque
// visitor token from the onboarding cookie. It implements
// onboarding.CheckpointStore. Save is a ReplaceOne upsert, so a write
// either lands whole or leaves the previous document intact.
type Store struct {
	c *mongo.Collection
}

// New creates a new checkpoint Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("saga_checkpoints")}
}

// EnsureIndexes creates the visitor-token lookup index and the TTL index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "visitor_token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_checkpoint_visitor"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_checkpoint_ttl"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Load returns the checkpoint for a visitor token, or nil when none
// exists. Expired-but-not-yet-reaped documents count as absent.
func (s *Store) Load(ctx context.Context, key string) (*onboarding.Checkpoint, error) {
	var rec models.SagaCheckpoint
	err := s.c.FindOne(ctx, bson.M{
		"visitor_token": key,
		"expires_at":    bson.M{"$gt": time.Now().UTC()},
	}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cp := &onboarding.Checkpoint{
		InviteCode:   rec.InviteCode,
		Stage:        onboarding.Stage(rec.Stage),
		AttemptToken: rec.AttemptToken,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
	if rec.CrewID != nil {
		cp.CrewID = rec.CrewID.Hex()
	}
	return cp, nil
}

// Save upserts the checkpoint for a visitor token and refreshes its TTL.
func (s *Store) Save(ctx context.Context, key string, cp *onboarding.Checkpoint) error {
	now := time.Now().UTC()
	rec := models.SagaCheckpoint{
		VisitorToken: key,
		InviteCode:   cp.InviteCode,
		Stage:        string(cp.Stage),
		AttemptToken: cp.AttemptToken,
		CreatedAt:    cp.CreatedAt,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(checkpointTTL),
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if cp.CrewID != "" {
		oid, err := primitive.ObjectIDFromHex(cp.CrewID)
		if err != nil {
			return err
		}
		rec.CrewID = &oid
	}

	_, err := s.c.ReplaceOne(ctx,
		bson.M{"visitor_token": key},
		rec,
		options.Replace().SetUpsert(true))
	return err
}

// Clear removes the checkpoint for a visitor token. Clearing an absent
// checkpoint is not an error.
func (s *Store) Clear(ctx context.Context, key string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"visitor_token": key})
	return err
}

// CleanupExpired removes expired checkpoints. Backup for when TTL index
// cleanup is delayed.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.c.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": time.Now().UTC()},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
