// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	athletestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/athletes"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/store/audit"
	checkpointstore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/checkpoints"
	crewstore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/crews"
	invitestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/invites"
	membershipstore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/memberships"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/store/oauthstate"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB establishes the MongoDB connection and verifies it with a
// ping before the rest of startup proceeds.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase))

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

// EnsureSchema creates the indexes the stores depend on. The unique
// indexes here are load-bearing: duplicate-join and attempt-replay
// protection both rest on them, so startup fails hard if they cannot
// be created.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	type indexed interface {
		EnsureIndexes(ctx context.Context) error
	}
	stores := map[string]indexed{
		"athletes":         athletestore.New(db),
		"crews":            crewstore.New(db),
		"crew_invites":     invitestore.New(db),
		"crew_memberships": membershipstore.New(db),
		"saga_checkpoints": checkpointstore.New(db),
		"oauth_states":     oauthstate.New(db),
		"audit_events":     audit.New(db),
	}

	for name, s := range stores {
		if err := s.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure indexes for %s: %w", name, err)
		}
		logger.Debug("indexes ensured", zap.String("store", name))
	}
	return nil
}
