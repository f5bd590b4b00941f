// internal/app/onboarding/stage.go
package onboarding

import "time"

// Stage identifies how far a visitor has progressed through the
// invite-to-membership flow.
type Stage string

const (
	StageAwaitingInvite   Stage = "awaiting_invite"
	StageInviteResolved   Stage = "invite_resolved"
	StageAwaitingIdentity Stage = "awaiting_identity"
	StageAwaitingProfile  Stage = "awaiting_profile"
	StageJoining          Stage = "joining"
	StageCompleted        Stage = "completed"
	StageAbandoned        Stage = "abandoned"
)

// Terminal reports whether the stage ends the flow. Terminal checkpoints
// are never persisted; the controller clears them instead.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageAbandoned
}

// Checkpoint is the durable record of one visitor's saga progress. The
// controller is its only writer; everything else reads derived facts.
//
// AttemptToken is generated exactly once per new invite code entering the
// flow and reused across retries and resumptions. Entering a different
// code discards the checkpoint and generates a fresh token.
type Checkpoint struct {
	InviteCode   string
	CrewID       string
	Stage        Stage
	AttemptToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
