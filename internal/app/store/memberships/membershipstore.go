// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/invitecode"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/txn"
	"github.com/GoFast-Athlete-Training/crewhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	// ErrInviteNotFound is returned when the invite code does not exist.
	ErrInviteNotFound = errors.New("invite not found")
	// ErrInviteConsumed is returned when the invite exists but can no
	// longer authorize a join (revoked, expired, or use budget spent).
	ErrInviteConsumed = errors.New("invite is no longer usable")
	// ErrAthleteNotFound is returned when the joining athlete id is unknown.
	ErrAthleteNotFound = errors.New("athlete not found")
)

// attemptLedgerTTL bounds how long a committed attempt token stays
// replayable. Checkpoints expire well before this, so any legitimate
// resume finds its ledger entry.
const attemptLedgerTTL = 30 * 24 * time.Hour

// JoinResult is the outcome of a successful Commit.
type JoinResult struct {
	MembershipID  primitive.ObjectID
	CrewID        primitive.ObjectID
	Role          string
	AlreadyMember bool
}

type Store struct {
	db       *mongo.Database
	c        *mongo.Collection
	crews    *mongo.Collection
	invites  *mongo.Collection
	attempts *mongo.Collection
	athletes *mongo.Collection
	log      *zap.Logger
}

func New(db *mongo.Database) *Store {
	return &Store{
		db:       db,
		c:        db.Collection("crew_memberships"),
		crews:    db.Collection("crews"),
		invites:  db.Collection("crew_invites"),
		attempts: db.Collection("join_attempts"),
		athletes: db.Collection("athletes"),
		log:      zap.NewNop(),
	}
}

// WithLogger sets the logger used when the commit transaction falls
// back to unguarded writes on a standalone server.
func (s *Store) WithLogger(l *zap.Logger) *Store {
	s.log = l
	return s
}

// EnsureIndexes creates the indexes the join commit depends on. The
// unique (crew_id, athlete_id) index is what makes duplicate joins
// physically impossible; the unique attempt_token index is what makes
// token replay detection race-free.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	memberships := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "crew_id", Value: 1},
				{Key: "athlete_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "athlete_id", Value: 1}},
		},
	}
	if _, err := s.c.Indexes().CreateMany(ctx, memberships); err != nil {
		return err
	}

	attempts := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "attempt_token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	_, err := s.attempts.Indexes().CreateMany(ctx, attempts)
	return err
}

// Commit performs the join for one attempt token. It is idempotent:
// committing the same token again returns the recorded outcome without
// touching the invite's use budget, no matter how many times it is
// retried or which process retries it.
//
// The sequence is:
//  1. Replay check against the attempt ledger.
//  2. Inside one transaction: already-member check, conditional spend of
//     one invite use, membership insert, ledger write. A crash mid-way
//     aborts the whole group, so a use can never be spent without the
//     membership and ledger entry that account for it. On standalone
//     servers, where transactions are unavailable, the same steps run
//     unguarded with refund compensation on failure.
func (s *Store) Commit(ctx context.Context, athleteID primitive.ObjectID, rawCode, attemptToken string) (JoinResult, error) {
	code := invitecode.Normalize(rawCode)

	// 1. Replay: a ledger entry means this token already committed.
	if res, ok, err := s.replay(ctx, attemptToken); err != nil {
		return JoinResult{}, err
	} else if ok {
		return res, nil
	}

	// Make sure the athlete exists before touching invite budget.
	if err := s.athletes.FindOne(ctx, bson.M{"_id": athleteID},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return JoinResult{}, ErrAthleteNotFound
		}
		return JoinResult{}, err
	}

	// 2. The write group. txn.Run may retry it on transient conflicts,
	// so every step re-reads current state.
	var result JoinResult
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		r, err := s.commitOnce(ctx, athleteID, code, attemptToken)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err == nil {
		return result, nil
	}

	// A duplicate membership insert means a concurrent unguarded join
	// for the same crew and athlete won the race; commitOnce already
	// refunded the spend. Report the surviving membership.
	if wafflemongo.IsDup(err) {
		return s.resolveExisting(ctx, athleteID, code, attemptToken)
	}
	return JoinResult{}, err
}

// commitOnce runs the join write group once: spend a use, insert the
// membership, record the attempt. Compensating refunds are issued on
// every failure path after the spend; under a transaction they are
// redundant (the abort undoes the spend) and net to zero, without one
// they restore the budget.
func (s *Store) commitOnce(ctx context.Context, athleteID primitive.ObjectID, code, attemptToken string) (JoinResult, error) {
	var inv models.CrewInvite
	if err := s.invites.FindOne(ctx, bson.M{"code": code}).Decode(&inv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return JoinResult{}, ErrInviteNotFound
		}
		return JoinResult{}, err
	}

	// Already a member: success without spending a use.
	var existing models.CrewMembership
	err := s.c.FindOne(ctx, bson.M{
		"crew_id":    inv.CrewID,
		"athlete_id": athleteID,
	}).Decode(&existing)
	switch {
	case err == nil:
		result := JoinResult{
			MembershipID:  existing.ID,
			CrewID:        existing.CrewID,
			Role:          existing.Role,
			AlreadyMember: true,
		}
		if err := s.recordAttempt(ctx, attemptToken, athleteID, code, result); err != nil && !wafflemongo.IsDup(err) {
			return JoinResult{}, err
		}
		return result, nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return JoinResult{}, err
	}

	// Spend one use. The filter re-checks revocation, expiry, and the
	// use budget so the increment and the checks are a single atomic step.
	now := time.Now()
	spend, err := s.invites.UpdateOne(ctx, bson.M{
		"code":    code,
		"revoked": bson.M{"$ne": true},
		"$and": []bson.M{
			{"$or": []bson.M{
				{"expires_at": bson.M{"$exists": false}},
				{"expires_at": nil},
				{"expires_at": bson.M{"$gt": now}},
			}},
			{"$expr": bson.M{"$or": []interface{}{
				bson.M{"$eq": []interface{}{"$max_uses", 0}},
				bson.M{"$lt": []interface{}{"$uses", "$max_uses"}},
			}}},
		},
	}, bson.M{"$inc": bson.M{"uses": 1}})
	if err != nil {
		return JoinResult{}, err
	}
	if spend.MatchedCount == 0 {
		// The code exists (loaded above), so the budget or validity
		// window is gone.
		return JoinResult{}, ErrInviteConsumed
	}

	// Role comes from the crew's admin pointer at commit time.
	var crew models.Crew
	if err := s.crews.FindOne(ctx, bson.M{"_id": inv.CrewID}).Decode(&crew); err != nil {
		s.refundUse(ctx, code)
		return JoinResult{}, err
	}
	role := models.RoleMember
	if crew.AdminAthleteID == athleteID {
		role = models.RoleAdmin
	}

	// Insert the membership. The unique index turns a concurrent or
	// repeated join into a duplicate key error instead of a second row.
	membership := models.CrewMembership{
		ID:           primitive.NewObjectID(),
		CrewID:       inv.CrewID,
		AthleteID:    athleteID,
		Role:         role,
		InviteCode:   code,
		AttemptToken: attemptToken,
		CreatedAt:    now,
	}
	if _, err := s.c.InsertOne(ctx, membership); err != nil {
		s.refundUse(ctx, code)
		return JoinResult{}, err
	}

	result := JoinResult{
		MembershipID: membership.ID,
		CrewID:       membership.CrewID,
		Role:         membership.Role,
	}

	// Ledger write, same write group. A duplicate means two commits
	// raced on the token and the other one recorded it.
	if err := s.recordAttempt(ctx, attemptToken, athleteID, code, result); err != nil && !wafflemongo.IsDup(err) {
		s.refundUse(ctx, code)
		_, _ = s.c.DeleteOne(ctx, bson.M{"_id": membership.ID})
		return JoinResult{}, err
	}
	return result, nil
}

// resolveExisting reports the membership a lost duplicate-insert race
// left in place.
func (s *Store) resolveExisting(ctx context.Context, athleteID primitive.ObjectID, code, attemptToken string) (JoinResult, error) {
	var inv models.CrewInvite
	if err := s.invites.FindOne(ctx, bson.M{"code": code}).Decode(&inv); err != nil {
		return JoinResult{}, err
	}
	var existing models.CrewMembership
	if err := s.c.FindOne(ctx, bson.M{
		"crew_id":    inv.CrewID,
		"athlete_id": athleteID,
	}).Decode(&existing); err != nil {
		return JoinResult{}, err
	}
	result := JoinResult{
		MembershipID:  existing.ID,
		CrewID:        existing.CrewID,
		Role:          existing.Role,
		AlreadyMember: true,
	}
	if err := s.recordAttempt(ctx, attemptToken, athleteID, code, result); err != nil && !wafflemongo.IsDup(err) {
		return JoinResult{}, err
	}
	return result, nil
}

// replay looks up a previously committed attempt token.
func (s *Store) replay(ctx context.Context, attemptToken string) (JoinResult, bool, error) {
	var rec models.JoinAttempt
	err := s.attempts.FindOne(ctx, bson.M{"attempt_token": attemptToken}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return JoinResult{}, false, nil
	}
	if err != nil {
		return JoinResult{}, false, err
	}
	return JoinResult{
		MembershipID: rec.MembershipID,
		CrewID:       rec.CrewID,
		Role:         rec.Role,
	}, true, nil
}

// recordAttempt writes the ledger entry for a committed token. A
// duplicate key error means two commits raced on the same token;
// callers treat that as already recorded.
func (s *Store) recordAttempt(ctx context.Context, attemptToken string, athleteID primitive.ObjectID, code string, res JoinResult) error {
	now := time.Now()
	_, err := s.attempts.InsertOne(ctx, models.JoinAttempt{
		ID:           primitive.NewObjectID(),
		AttemptToken: attemptToken,
		AthleteID:    athleteID,
		CrewID:       res.CrewID,
		MembershipID: res.MembershipID,
		Role:         res.Role,
		InviteCode:   code,
		CreatedAt:    now,
		ExpiresAt:    now.Add(attemptLedgerTTL),
	})
	return err
}

// refundUse undoes a spent invite use when the join did not create a
// membership.
func (s *Store) refundUse(ctx context.Context, code string) {
	_, _ = s.invites.UpdateOne(ctx,
		bson.M{"code": code, "uses": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"uses": -1}})
}

// Get loads the membership for (crewID, athleteID).
func (s *Store) Get(ctx context.Context, crewID, athleteID primitive.ObjectID) (*models.CrewMembership, error) {
	var m models.CrewMembership
	if err := s.c.FindOne(ctx, bson.M{"crew_id": crewID, "athlete_id": athleteID}).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Exists checks if a membership exists for the given crew and athlete.
func (s *Store) Exists(ctx context.Context, crewID, athleteID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"crew_id": crewID, "athlete_id": athleteID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the membership document for (crewID, athleteID).
func (s *Store) Remove(ctx context.Context, crewID, athleteID primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"crew_id": crewID, "athlete_id": athleteID})
	return err
}

// CountByCrew returns the count of memberships for a crew, optionally
// filtered by role. If role is empty, counts all memberships.
func (s *Store) CountByCrew(ctx context.Context, crewID primitive.ObjectID, role string) (int64, error) {
	filter := bson.M{"crew_id": crewID}
	if role != "" {
		filter["role"] = role
	}
	return s.c.CountDocuments(ctx, filter)
}

// ListByCrew returns all memberships for a crew, oldest first.
func (s *Store) ListByCrew(ctx context.Context, crewID primitive.ObjectID) ([]models.CrewMembership, error) {
	cur, err := s.c.Find(ctx, bson.M{"crew_id": crewID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.CrewMembership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListByAthlete returns all memberships for an athlete, newest first.
func (s *Store) ListByAthlete(ctx context.Context, athleteID primitive.ObjectID) ([]models.CrewMembership, error) {
	cur, err := s.c.Find(ctx, bson.M{"athlete_id": athleteID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.CrewMembership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}
