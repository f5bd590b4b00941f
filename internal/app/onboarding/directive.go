// internal/app/onboarding/directive.go
package onboarding

// DirectiveKind tells the calling screen what to do next. Advance never
// renders anything itself; it returns exactly one directive per call.
type DirectiveKind string

const (
	// DirectiveEnterInvite: no usable checkpoint; show the code entry form.
	DirectiveEnterInvite DirectiveKind = "enter_invite"

	// DirectiveShowSignIn: invite resolved but no authenticated identity.
	DirectiveShowSignIn DirectiveKind = "show_sign_in"

	// DirectiveCompleteProfile: identity present but profile incomplete.
	DirectiveCompleteProfile DirectiveKind = "complete_profile"

	// DirectiveRetryJoin: the commit failed transiently; the checkpoint is
	// unchanged and the caller may retry with backoff.
	DirectiveRetryJoin DirectiveKind = "retry_join"

	// DirectiveGoToCrewHome: membership committed; route to the crew's
	// home, admin or member destination per Role.
	DirectiveGoToCrewHome DirectiveKind = "go_to_crew_home"

	// DirectiveInviteInvalid: the code failed validation or lookup.
	// The visitor stays where they are; nothing was persisted.
	DirectiveInviteInvalid DirectiveKind = "invite_invalid"

	// DirectiveInviteExpired: the code was consumed by someone else.
	// The checkpoint is cleared; show "invite no longer valid".
	DirectiveInviteExpired DirectiveKind = "invite_expired"
)

// Directive is the controller's answer to one Advance call.
type Directive struct {
	Kind DirectiveKind

	// Preview is set when the invite was resolved during this call.
	Preview *CrewPreview

	// CrewID is set whenever the checkpoint knows its crew.
	CrewID string

	// Role, MembershipID, and InviteCode are set with
	// DirectiveGoToCrewHome. InviteCode is the code the commit consumed.
	Role         string
	MembershipID string
	InviteCode   string

	// Err carries the classified failure for invalid/expired/retry
	// directives so screens can word their messages.
	Err error
}
