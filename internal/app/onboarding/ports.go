// internal/app/onboarding/ports.go
package onboarding

import "context"

// Identity is the live authentication fact set. It is always re-derived
// from the session on every Advance call, never cached in the checkpoint.
type Identity struct {
	AthleteID string // stable subject identifier
	Name      string
	Email     string
	Handle    string // empty until the profile is complete
}

// CrewPreview is a non-committing, point-in-time snapshot of the crew an
// invite code resolves to. It is display data only; the membership store
// re-validates everything at commit time.
type CrewPreview struct {
	CrewID      string
	Name        string
	Description string
	AdminName   string
	MemberCount int
	LogoURL     string
}

// CommitResult is returned by a successful (or success-equivalent) join
// commit. Never partially populated.
type CommitResult struct {
	MembershipID string
	CrewID       string
	Role         string // "admin" | "member", from the commit response only

	// AlreadyMember is true when the commit found an existing membership
	// for this athlete: a join that actually succeeded before an
	// interruption. Treated identically to a fresh commit.
	AlreadyMember bool
}

// CheckpointStore persists checkpoints keyed by an opaque visitor token.
// Save must be last-write-wins and crash-consistent: it either fully
// succeeds or the prior value remains readable.
type CheckpointStore interface {
	Load(ctx context.Context, key string) (*Checkpoint, error)
	Save(ctx context.Context, key string, cp *Checkpoint) error
	Clear(ctx context.Context, key string) error
}

// IdentityResolver reports the current authenticated identity, or nil
// when the visitor is signed out. Implementations must not return a
// false "signed out" while the provider is still bootstrapping; the web
// adapter satisfies this by resolving only after session decode and a
// fresh athlete fetch.
type IdentityResolver interface {
	CurrentIdentity(ctx context.Context) (*Identity, error)
}

// InviteResolver fetches a non-committing preview for a normalized,
// format-valid invite code. It has no server-side side effects and is
// safely retryable. Fails with ErrInviteNotFound or ErrUnavailable.
type InviteResolver interface {
	Resolve(ctx context.Context, code string) (*CrewPreview, error)
}

// ProfileGate decides whether an identity is complete enough to join.
// A pure predicate; it never performs validation of its own.
type ProfileGate interface {
	IsComplete(id *Identity) bool
}

// HandleGate is the default gate: a stable handle must be present.
type HandleGate struct{}

func (HandleGate) IsComplete(id *Identity) bool {
	return id != nil && id.Handle != ""
}

// JoinExecutor performs the irreversible step: committing membership for
// (identity, inviteCode). The same attemptToken must be sent on every
// retry of the same logical attempt; the membership store treats it as a
// dedup key, so re-sending after a timeout cannot consume the invite
// twice or create two memberships.
//
// Failures are classified as ErrInviteNotFound, ErrInviteConsumed,
// ErrUnauthorized, or ErrUnavailable. An existing membership is not a
// failure: it comes back as CommitResult{AlreadyMember: true}.
type JoinExecutor interface {
	Commit(ctx context.Context, id Identity, inviteCode, attemptToken string) (*CommitResult, error)
}
