package home_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/errors"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/features/home"
	"github.com/GoFast-Athlete-Training/crewhub/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*home.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	handler := home.NewHandler(db, uierrors.NewErrorLogger(logger), logger)
	return handler, testutil.NewFixtures(t, db)
}

func TestServeRoot_SignedOut(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	func() {
		defer func() { recover() }()
		handler.ServeRoot(rec, req)
	}()

	if rec.Code == http.StatusInternalServerError {
		t.Errorf("unexpected server error: %d", rec.Code)
	}
}

func TestServeRoot_SignedInWithCrews(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAthlete(ctx, "Crew Admin", "admin@example.com")
	crew := fixtures.CreateCrew(ctx, "River Runners", admin.ID)
	athlete := fixtures.CreateAthlete(ctx, "Runner", "runner@example.com")
	fixtures.CreateMembership(ctx, crew.ID, athlete.ID, "member")

	req := testutil.WithUser(httptest.NewRequest("GET", "/", nil),
		testutil.TestUser{ID: athlete.ID.Hex(), Name: athlete.FullName})
	rec := httptest.NewRecorder()
	func() {
		defer func() { recover() }()
		handler.ServeRoot(rec, req)
	}()

	if rec.Code == http.StatusInternalServerError {
		t.Errorf("unexpected server error: %d", rec.Code)
	}
}
