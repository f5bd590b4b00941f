package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/store/audit"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auditlog"
	"github.com/GoFast-Athlete-Training/crewhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil)

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSuccess(ctx, req, primitive.NewObjectID(), "password", "test@example.com")
	logger.Logout(ctx, req, primitive.NewObjectID().Hex())
	logger.JoinCommitted(ctx, req, primitive.NewObjectID(), primitive.NewObjectID(), "FAST123", "member", false)
}

func TestLogger_Log_ConfigOff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	athleteID := primitive.NewObjectID()
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{
		Auth: "off",
		Join: "off",
	})

	logger.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		AthleteID: &athleteID,
		Success:   true,
	})

	events, err := store.GetByAthlete(ctx, athleteID, 10)
	if err != nil {
		t.Fatalf("GetByAthlete failed: %v", err)
	}
	if len(events) != 0 {
		t.Error("expected no events when config is 'off'")
	}
}

func TestLogger_Log_ConfigDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	athleteID := primitive.NewObjectID()
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{
		Auth: "db",
		Join: "db",
	})

	logger.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		AthleteID: &athleteID,
		Success:   true,
	})

	events, err := store.GetByAthlete(ctx, athleteID, 10)
	if err != nil {
		t.Fatalf("GetByAthlete failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestLogger_Log_ConfigLogOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	athleteID := primitive.NewObjectID()
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{
		Auth: "log",
		Join: "log",
	})

	logger.Log(ctx, audit.Event{
		Category:  audit.CategoryJoin,
		EventType: audit.EventJoinCommitted,
		AthleteID: &athleteID,
		Success:   true,
	})

	events, err := store.GetByAthlete(ctx, athleteID, 10)
	if err != nil {
		t.Fatalf("GetByAthlete failed: %v", err)
	}
	if len(events) != 0 {
		t.Error("expected no DB events when config is 'log'")
	}
}

func TestLogger_JoinCommitted_RecordsDetails(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	athleteID := primitive.NewObjectID()
	crewID := primitive.NewObjectID()
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{
		Auth: "db",
		Join: "db",
	})

	req := httptest.NewRequest("POST", "/join/continue", nil)
	logger.JoinCommitted(ctx, req, athleteID, crewID, "FAST123", "member", false)

	events, err := store.GetByCrew(ctx, crewID, 10)
	if err != nil {
		t.Fatalf("GetByCrew failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.EventType != audit.EventJoinCommitted {
		t.Errorf("event type: got %q", ev.EventType)
	}
	if ev.Details["invite_code"] != "FAST123" {
		t.Errorf("invite_code detail: got %q", ev.Details["invite_code"])
	}
	if ev.Details["role"] != "member" {
		t.Errorf("role detail: got %q", ev.Details["role"])
	}
}
