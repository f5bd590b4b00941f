// internal/app/onboarding/errors.go
package onboarding

import (
	"errors"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/invitecode"
)

// Classified failures the saga reacts to. Adapters translate collaborator
// errors into these sentinels (wrapping is fine; matching uses errors.Is).
var (
	// ErrInvalidFormat: the code failed local validation. Never persisted,
	// never sent to the network.
	ErrInvalidFormat = invitecode.ErrInvalidFormat

	// ErrInviteNotFound: the code is unknown, revoked, or expired.
	// Terminal for that code.
	ErrInviteNotFound = errors.New("invite code not found")

	// ErrInviteConsumed: another athlete used up the code first.
	// Terminal; the visitor needs a new invite.
	ErrInviteConsumed = errors.New("invite code already used")

	// ErrUnauthorized: the identity session expired mid-commit. Recovered
	// by re-authenticating with the same attempt token, not surfaced as a
	// hard failure.
	ErrUnauthorized = errors.New("identity session expired")

	// ErrUnavailable: the backend or network failed. Retryable with the
	// same attempt token; the checkpoint is left untouched.
	ErrUnavailable = errors.New("service unavailable")

	// ErrSignInCancelled / ErrSignInBlocked classify interactive sign-in
	// failures reported by the identity provider callback.
	ErrSignInCancelled = errors.New("sign-in cancelled")
	ErrSignInBlocked   = errors.New("sign-in blocked by provider")
)

// Transient reports whether the failure is safe to retry without any
// state change.
func Transient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
