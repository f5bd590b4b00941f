package invitestore

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/invitecode"
	"github.com/GoFast-Athlete-Training/crewhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateCode is returned when an invite code collides with an
	// existing one.
	ErrDuplicateCode = errors.New("invite code already exists")
	// ErrNotFound is returned when no invite carries the given code.
	ErrNotFound = errors.New("invite not found")
)

// codeAlphabet avoids characters that read ambiguously when shared aloud.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const generatedCodeLen = 8

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("crew_invites")}
}

// EnsureIndexes creates the unique code index and the crew listing index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "crew_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// GenerateCode returns a fresh random invite code.
func GenerateCode() (string, error) {
	buf := make([]byte, generatedCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// Create inserts a new invite. When inv.Code is empty a random code is
// generated; a supplied code is normalized and validated first.
func (s *Store) Create(ctx context.Context, inv models.CrewInvite) (models.CrewInvite, error) {
	if inv.Code == "" {
		code, err := GenerateCode()
		if err != nil {
			return models.CrewInvite{}, err
		}
		inv.Code = code
	} else {
		inv.Code = invitecode.Normalize(inv.Code)
		if err := invitecode.Validate(inv.Code); err != nil {
			return models.CrewInvite{}, err
		}
	}

	inv.ID = primitive.NewObjectID()
	inv.Uses = 0
	inv.CreatedAt = time.Now()

	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		if wafflemongo.IsDup(err) {
			return models.CrewInvite{}, ErrDuplicateCode
		}
		return models.CrewInvite{}, err
	}
	return inv, nil
}

// GetByCode loads an invite by its normalized code. Returns ErrNotFound
// when the code is unknown.
func (s *Store) GetByCode(ctx context.Context, code string) (*models.CrewInvite, error) {
	code = invitecode.Normalize(code)
	var inv models.CrewInvite
	if err := s.c.FindOne(ctx, bson.M{"code": code}).Decode(&inv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// Revoke marks an invite unusable. Revocation is permanent.
func (s *Store) Revoke(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"revoked": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByCrew returns a crew's invites, newest first.
func (s *Store) ListByCrew(ctx context.Context, crewID primitive.ObjectID) ([]models.CrewInvite, error) {
	cur, err := s.c.Find(ctx, bson.M{"crew_id": crewID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var invites []models.CrewInvite
	if err := cur.All(ctx, &invites); err != nil {
		return nil, err
	}
	return invites, nil
}
