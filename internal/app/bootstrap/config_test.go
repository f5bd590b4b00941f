package bootstrap

import (
	"strings"
	"testing"

	"github.com/GoFast-Athlete-Training/crewhub/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "crewhub_test",
		SessionKey:    strings.Repeat("k", 40),
		SessionName:   "crewhub-session",
		CSRFKey:       strings.Repeat("c", 32),
		BaseURL:       "http://localhost:3000",
		AuditLogAuth:  "off",
		AuditLogJoin:  "off",
	}
}

func TestValidateConfig_Valid(t *testing.T) {
	coreCfg := &config.CoreConfig{Env: "dev"}
	if err := ValidateConfig(coreCfg, validAppConfig(), zap.NewNop()); err != nil {
		t.Fatalf("ValidateConfig failed: %v", err)
	}
}

func TestValidateConfig_BadMongoURI(t *testing.T) {
	coreCfg := &config.CoreConfig{Env: "dev"}
	cfg := validAppConfig()
	cfg.MongoURI = "not-a-mongo-uri"

	if err := ValidateConfig(coreCfg, cfg, zap.NewNop()); err == nil {
		t.Error("expected error for invalid mongo URI")
	}
}

func TestValidateConfig_CSRFKeyLength(t *testing.T) {
	coreCfg := &config.CoreConfig{Env: "dev"}
	cfg := validAppConfig()
	cfg.CSRFKey = "too-short"

	if err := ValidateConfig(coreCfg, cfg, zap.NewNop()); err == nil {
		t.Error("expected error for short csrf key")
	}
}

func TestValidateConfig_DevKeysRejectedInProd(t *testing.T) {
	coreCfg := &config.CoreConfig{Env: "prod"}
	cfg := validAppConfig()
	cfg.SessionKey = "dev-only-change-me-please-0123456789ABCDEF"

	if err := ValidateConfig(coreCfg, cfg, zap.NewNop()); err == nil {
		t.Error("expected error for dev session key in prod")
	}
}

func TestValidateConfig_GoogleCredentialsPaired(t *testing.T) {
	coreCfg := &config.CoreConfig{Env: "dev"}
	cfg := validAppConfig()
	cfg.GoogleClientID = "client-id"
	cfg.GoogleClientSecret = ""

	if err := ValidateConfig(coreCfg, cfg, zap.NewNop()); err == nil {
		t.Error("expected error for unpaired google credentials")
	}
}

func TestEnsureSchema_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoDatabase: db}
	coreCfg := &config.CoreConfig{Env: "dev"}

	if err := EnsureSchema(ctx, coreCfg, validAppConfig(), deps, zap.NewNop()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	// The duplicate-join guard rests on the unique (crew_id, athlete_id)
	// index, so verify it exists.
	cur, err := db.Collection("crew_memberships").Indexes().List(ctx)
	if err != nil {
		t.Fatalf("list indexes: %v", err)
	}
	var found bool
	for cur.Next(ctx) {
		var idx struct {
			Key map[string]interface{} `bson:"key"`
		}
		if err := cur.Decode(&idx); err != nil {
			t.Fatalf("decode index: %v", err)
		}
		if _, ok := idx.Key["crew_id"]; ok {
			if _, ok := idx.Key["athlete_id"]; ok {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected compound index on (crew_id, athlete_id)")
	}
}
