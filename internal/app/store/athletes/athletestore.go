package athletestore

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

var (
	// ErrDuplicateEmail is returned when creating an athlete with an email that already exists.
	ErrDuplicateEmail = errors.New("an account with this email already exists")
	// ErrDuplicateHandle is returned when the requested handle is already taken.
	ErrDuplicateHandle = errors.New("this handle is already taken")

	errBadAuthMethod = errors.New(`auth method must be "password"|"google"`)
	errBadStatus     = errors.New(`status must be "active"|"disabled"`)
	errEmailNeeded   = errors.New("email is required")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("athletes")}
}

// EnsureIndexes creates the unique indexes athlete identity depends on.
// handle_ci and auth_return_id are sparse: accounts mid-onboarding have
// neither yet.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "handle_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "auth_return_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// GetByID loads an athlete by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Athlete, error) {
	var a models.Athlete
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByIDs loads several athletes at once, for member listings.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Athlete, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var athletes []models.Athlete
	if err := cur.All(ctx, &athletes); err != nil {
		return nil, err
	}
	return athletes, nil
}

// GetByEmail looks up an athlete by case-insensitive email.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.Athlete, error) {
	var a models.Athlete
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByAuthReturnID looks up an athlete by the identity provider's stable
// subject identifier. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByAuthReturnID(ctx context.Context, subject string) (*models.Athlete, error) {
	var a models.Athlete
	if err := s.c.FindOne(ctx, bson.M{"auth_return_id": subject}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByHandle looks up an athlete by case-insensitive handle.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByHandle(ctx context.Context, handle string) (*models.Athlete, error) {
	var a models.Athlete
	if err := s.c.FindOne(ctx, bson.M{"handle_ci": text.Fold(normalize.Handle(handle))}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new athlete after normalizing & validating fields.
// The caller is responsible for hashing any password before storing.
func (s *Store) Create(ctx context.Context, a models.Athlete) (models.Athlete, error) {
	a.ID = primitive.NewObjectID()
	a.FullName = normalize.Name(a.FullName)
	a.FullNameCI = text.Fold(a.FullName)
	a.Email = normalize.Email(a.Email)
	a.Handle = normalize.Handle(a.Handle)
	if a.Handle != "" {
		a.HandleCI = text.Fold(a.Handle)
	}
	if a.Status == "" {
		a.Status = "active"
	}

	if a.Email == "" {
		return models.Athlete{}, errEmailNeeded
	}
	switch normalize.AuthMethod(a.AuthMethod) {
	case "password", "google":
		// ok
	default:
		return models.Athlete{}, errBadAuthMethod
	}
	switch normalize.Status(a.Status) {
	case "active", "disabled":
		// ok
	default:
		return models.Athlete{}, errBadStatus
	}

	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Athlete{}, ErrDuplicateEmail
		}
		return models.Athlete{}, err
	}
	return a, nil
}

// ProfileUpdate holds the profile fields an athlete can edit.
type ProfileUpdate struct {
	FullName string
	Handle   string
}

// UpdateProfile sets the athlete's display name and handle. Returns
// ErrDuplicateHandle when the handle collides with another account.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) error {
	handle := normalize.Handle(upd.Handle)
	set := bson.M{
		"full_name":    normalize.Name(upd.FullName),
		"full_name_ci": text.Fold(normalize.Name(upd.FullName)),
		"updated_at":   time.Now(),
	}
	unset := bson.M{}
	if handle != "" {
		set["handle"] = handle
		set["handle_ci"] = text.Fold(handle)
	} else {
		unset["handle"] = ""
		unset["handle_ci"] = ""
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateHandle
		}
		return err
	}
	return nil
}

// HandleExistsForOther checks whether a handle is taken by someone other
// than the given athlete.
func (s *Store) HandleExistsForOther(ctx context.Context, handle string, excludeID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"handle_ci": text.Fold(normalize.Handle(handle)),
		"_id":       bson.M{"$ne": excludeID},
	}).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

// SetStatus updates the account status ("active" or "disabled").
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	status = normalize.Status(status)
	switch status {
	case "active", "disabled":
	default:
		return errBadStatus
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}})
	return err
}
