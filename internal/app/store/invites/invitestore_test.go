package invitestore_test

import (
	"errors"
	"testing"

	invitestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/invites"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/invitecode"
	"github.com/GoFast-Athlete-Training/crewhub/internal/domain/models"
	"github.com/GoFast-Athlete-Training/crewhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := invitestore.GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode failed: %v", err)
		}
		if err := invitecode.Validate(code); err != nil {
			t.Fatalf("generated code %q fails validation: %v", code, err)
		}
		if seen[code] {
			t.Fatalf("generated duplicate code %q", code)
		}
		seen[code] = true
	}
}

func TestStore_Create_GeneratedCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.CrewInvite{
		CrewID:   primitive.NewObjectID(),
		IssuedBy: primitive.NewObjectID(),
		MaxUses:  5,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Code == "" {
		t.Fatal("expected a generated code")
	}
	if created.Uses != 0 {
		t.Errorf("uses: got %d, want 0", created.Uses)
	}
}

func TestStore_Create_SuppliedCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.CrewInvite{
		Code:     "  fast123 ",
		CrewID:   primitive.NewObjectID(),
		IssuedBy: primitive.NewObjectID(),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Code != "FAST123" {
		t.Errorf("code not normalized: %q", created.Code)
	}
}

func TestStore_Create_BadCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, models.CrewInvite{
		Code:     "no spaces allowed",
		CrewID:   primitive.NewObjectID(),
		IssuedBy: primitive.NewObjectID(),
	})
	if !errors.Is(err, invitecode.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestStore_Create_DuplicateCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}

	inv := models.CrewInvite{
		Code:     "FAST123",
		CrewID:   primitive.NewObjectID(),
		IssuedBy: primitive.NewObjectID(),
	}
	if _, err := store.Create(ctx, inv); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := store.Create(ctx, inv)
	if !errors.Is(err, invitestore.ErrDuplicateCode) {
		t.Errorf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestStore_GetByCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.CrewInvite{
		Code:     "FAST123",
		CrewID:   primitive.NewObjectID(),
		IssuedBy: primitive.NewObjectID(),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByCode(ctx, " fast123 ")
	if err != nil {
		t.Fatalf("GetByCode failed: %v", err)
	}
	if got.ID != created.ID {
		t.Error("wrong invite returned")
	}

	_, err = store.GetByCode(ctx, "MISSING")
	if !errors.Is(err, invitestore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Revoke(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.CrewInvite{
		Code:     "FAST123",
		CrewID:   primitive.NewObjectID(),
		IssuedBy: primitive.NewObjectID(),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Revoke(ctx, created.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	got, err := store.GetByCode(ctx, "FAST123")
	if err != nil {
		t.Fatalf("GetByCode failed: %v", err)
	}
	if !got.Revoked {
		t.Error("invite not marked revoked")
	}

	err = store.Revoke(ctx, primitive.NewObjectID())
	if !errors.Is(err, invitestore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListByCrew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invitestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	crewID := primitive.NewObjectID()
	issuer := primitive.NewObjectID()
	for _, code := range []string{"CODEA", "CODEB"} {
		if _, err := store.Create(ctx, models.CrewInvite{
			Code:     code,
			CrewID:   crewID,
			IssuedBy: issuer,
		}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := store.Create(ctx, models.CrewInvite{
		Code:     "OTHER",
		CrewID:   primitive.NewObjectID(),
		IssuedBy: issuer,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	invites, err := store.ListByCrew(ctx, crewID)
	if err != nil {
		t.Fatalf("ListByCrew failed: %v", err)
	}
	if len(invites) != 2 {
		t.Errorf("invites: got %d, want 2", len(invites))
	}
}
