package onboarding_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/onboarding"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| In-memory fakes                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

type memCheckpoints struct {
	mu    sync.Mutex
	byKey map[string]onboarding.Checkpoint
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{byKey: make(map[string]onboarding.Checkpoint)}
}

func (s *memCheckpoints) Load(_ context.Context, key string) (*onboarding.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	copied := cp
	return &copied, nil
}

func (s *memCheckpoints) Save(_ context.Context, key string, cp *onboarding.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[key] = *cp
	return nil
}

func (s *memCheckpoints) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byKey, key)
	return nil
}

type fakeIdentity struct {
	mu sync.Mutex
	id *onboarding.Identity
}

func (f *fakeIdentity) CurrentIdentity(context.Context) (*onboarding.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.id == nil {
		return nil, nil
	}
	copied := *f.id
	return &copied, nil
}

func (f *fakeIdentity) set(id *onboarding.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.id = id
}

type fakeInvites struct {
	mu       sync.Mutex
	previews map[string]*onboarding.CrewPreview
	err      error
	calls    int
}

func (f *fakeInvites) Resolve(_ context.Context, code string) (*onboarding.CrewPreview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.previews[code]
	if !ok {
		return nil, onboarding.ErrInviteNotFound
	}
	copied := *p
	return &copied, nil
}

// fakeJoins scripts commit outcomes in order and records every call.
type fakeJoins struct {
	mu      sync.Mutex
	results []commitOutcome
	tokens  []string
	codes   []string
	block   chan struct{} // when non-nil, Commit waits on it
}

type commitOutcome struct {
	res *onboarding.CommitResult
	err error
}

func (f *fakeJoins) Commit(_ context.Context, _ onboarding.Identity, code, token string) (*onboarding.CommitResult, error) {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.codes = append(f.codes, code)
	block := f.block
	var out commitOutcome
	if len(f.results) > 0 {
		out = f.results[0]
		if len(f.results) > 1 {
			f.results = f.results[1:]
		}
	}
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return out.res, out.err
}

func (f *fakeJoins) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Test rig                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

const visitor = "visitor-1"

func completeIdentity() *onboarding.Identity {
	return &onboarding.Identity{
		AthleteID: "ath-1",
		Name:      "Jess Runner",
		Email:     "jess@example.com",
		Handle:    "jessruns",
	}
}

func committed(role string) commitOutcome {
	return commitOutcome{res: &onboarding.CommitResult{
		MembershipID: "mem-1",
		CrewID:       "crew-1",
		Role:         role,
	}}
}

type rig struct {
	ctrl        *onboarding.Controller
	checkpoints *memCheckpoints
	identity    *fakeIdentity
	invites     *fakeInvites
	joins       *fakeJoins
}

func newRig() *rig {
	r := &rig{
		checkpoints: newMemCheckpoints(),
		identity:    &fakeIdentity{},
		invites: &fakeInvites{previews: map[string]*onboarding.CrewPreview{
			"FAST123": {CrewID: "crew-1", Name: "Morning Warriors", AdminName: "Dana", MemberCount: 12},
			"TRAIL42": {CrewID: "crew-2", Name: "Trail Crew", AdminName: "Sam", MemberCount: 4},
		}},
		joins: &fakeJoins{},
	}
	r.ctrl = onboarding.New(r.checkpoints, r.identity, r.invites, nil, r.joins, zap.NewNop())
	return r
}

func (r *rig) advance(t *testing.T, code string) *onboarding.Directive {
	t.Helper()
	d, err := r.ctrl.Advance(context.Background(), visitor, code)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	return d
}

func (r *rig) checkpoint(t *testing.T) *onboarding.Checkpoint {
	t.Helper()
	cp, err := r.checkpoints.Load(context.Background(), visitor)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cp
}

/*─────────────────────────────────────────────────────────────────────────────*
| Tests                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

func TestAdvance_NoCodeNoCheckpoint(t *testing.T) {
	r := newRig()
	d := r.advance(t, "")
	if d.Kind != onboarding.DirectiveEnterInvite {
		t.Errorf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveEnterInvite)
	}
}

func TestAdvance_InvalidFormatFailsFast(t *testing.T) {
	r := newRig()
	d := r.advance(t, "x!")
	if d.Kind != onboarding.DirectiveInviteInvalid {
		t.Errorf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveInviteInvalid)
	}
	if !errors.Is(d.Err, onboarding.ErrInvalidFormat) {
		t.Errorf("Err: got %v, want ErrInvalidFormat", d.Err)
	}
	if r.invites.calls != 0 {
		t.Errorf("resolver called %d times for invalid format, want 0", r.invites.calls)
	}
	if r.checkpoint(t) != nil {
		t.Error("checkpoint written for invalid code")
	}
}

func TestAdvance_UnknownCodeNotPersisted(t *testing.T) {
	r := newRig()
	d := r.advance(t, "NOPE99")
	if d.Kind != onboarding.DirectiveInviteInvalid {
		t.Errorf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveInviteInvalid)
	}
	if r.checkpoint(t) != nil {
		t.Error("checkpoint written for unknown code")
	}
}

// Scenario: FAST123 resolves to "Morning Warriors"; no identity yet.
func TestAdvance_ResolvedWithoutIdentity(t *testing.T) {
	r := newRig()
	d := r.advance(t, "fast123")

	if d.Kind != onboarding.DirectiveShowSignIn {
		t.Fatalf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveShowSignIn)
	}
	if d.Preview == nil || d.Preview.Name != "Morning Warriors" {
		t.Errorf("Preview: got %+v, want Morning Warriors", d.Preview)
	}

	cp := r.checkpoint(t)
	if cp == nil {
		t.Fatal("no checkpoint persisted")
	}
	if cp.InviteCode != "FAST123" {
		t.Errorf("InviteCode: got %q, want FAST123", cp.InviteCode)
	}
	if cp.Stage != onboarding.StageAwaitingIdentity {
		t.Errorf("Stage: got %q, want %q", cp.Stage, onboarding.StageAwaitingIdentity)
	}
	if cp.AttemptToken == "" {
		t.Error("attempt token not generated")
	}
}

// Scenario: authenticated, complete profile, valid code: one commit,
// Completed with role member, checkpoint cleared.
func TestAdvance_HappyPath(t *testing.T) {
	r := newRig()
	r.identity.set(completeIdentity())
	r.joins.results = []commitOutcome{committed("member")}

	d := r.advance(t, "FAST123")

	if d.Kind != onboarding.DirectiveGoToCrewHome {
		t.Fatalf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveGoToCrewHome)
	}
	if d.Role != "member" {
		t.Errorf("Role: got %q, want member", d.Role)
	}
	if d.CrewID != "crew-1" {
		t.Errorf("CrewID: got %q, want crew-1", d.CrewID)
	}
	if d.InviteCode != "FAST123" {
		t.Errorf("InviteCode: got %q, want FAST123", d.InviteCode)
	}
	if got := r.joins.callCount(); got != 1 {
		t.Errorf("commit calls: got %d, want 1", got)
	}
	if r.checkpoint(t) != nil {
		t.Error("checkpoint not cleared after commit")
	}
}

func TestAdvance_IncompleteProfileGates(t *testing.T) {
	r := newRig()
	id := completeIdentity()
	id.Handle = ""
	r.identity.set(id)

	d := r.advance(t, "FAST123")
	if d.Kind != onboarding.DirectiveCompleteProfile {
		t.Fatalf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveCompleteProfile)
	}
	cp := r.checkpoint(t)
	if cp == nil || cp.Stage != onboarding.StageAwaitingProfile {
		t.Fatalf("Stage: got %+v, want awaiting_profile", cp)
	}
	if r.joins.callCount() != 0 {
		t.Error("commit issued before profile complete")
	}

	// Profile completed out of band; resumption proceeds to the commit
	// with the original attempt token.
	token := cp.AttemptToken
	r.identity.set(completeIdentity())
	r.joins.results = []commitOutcome{committed("member")}

	d = r.advance(t, "")
	if d.Kind != onboarding.DirectiveGoToCrewHome {
		t.Fatalf("Kind after profile: got %q, want %q", d.Kind, onboarding.DirectiveGoToCrewHome)
	}
	if got := r.joins.tokens[0]; got != token {
		t.Errorf("commit token: got %q, want original %q", got, token)
	}
}

// Scenario: commit reports the invite was consumed by someone else.
func TestAdvance_InviteConsumed(t *testing.T) {
	r := newRig()
	r.identity.set(completeIdentity())
	r.joins.results = []commitOutcome{{err: onboarding.ErrInviteConsumed}}

	d := r.advance(t, "FAST123")

	if d.Kind != onboarding.DirectiveInviteExpired {
		t.Fatalf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveInviteExpired)
	}
	if r.checkpoint(t) != nil {
		t.Error("checkpoint not cleared on consumed invite")
	}
}

// Scenario: the commit times out repeatedly; each retry reissues exactly
// one call with the original attempt token and the stage stays Joining.
func TestAdvance_TransientRetriesShareToken(t *testing.T) {
	r := newRig()
	r.identity.set(completeIdentity())
	r.joins.results = []commitOutcome{{err: onboarding.ErrUnavailable}}

	d := r.advance(t, "FAST123")
	if d.Kind != onboarding.DirectiveRetryJoin {
		t.Fatalf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveRetryJoin)
	}

	for i := 0; i < 2; i++ {
		d = r.advance(t, "")
		if d.Kind != onboarding.DirectiveRetryJoin {
			t.Fatalf("retry %d Kind: got %q, want %q", i+1, d.Kind, onboarding.DirectiveRetryJoin)
		}
	}

	if got := r.joins.callCount(); got != 3 {
		t.Fatalf("commit calls: got %d, want 3", got)
	}
	first := r.joins.tokens[0]
	for i, tok := range r.joins.tokens {
		if tok != first {
			t.Errorf("call %d token %q differs from first %q", i, tok, first)
		}
	}

	cp := r.checkpoint(t)
	if cp == nil || cp.Stage != onboarding.StageJoining {
		t.Fatalf("Stage: got %+v, want joining", cp)
	}

	// A later retry succeeds with the same token.
	r.joins.mu.Lock()
	r.joins.results = []commitOutcome{committed("member")}
	r.joins.mu.Unlock()
	d = r.advance(t, "")
	if d.Kind != onboarding.DirectiveGoToCrewHome {
		t.Fatalf("final Kind: got %q, want %q", d.Kind, onboarding.DirectiveGoToCrewHome)
	}
	if got := r.joins.tokens[3]; got != first {
		t.Errorf("final token: got %q, want %q", got, first)
	}
}

// Resumability: a fresh process rehydrates only from the checkpoint
// store and reissues the commit with the same attempt token.
func TestAdvance_ResumesJoiningAfterRestart(t *testing.T) {
	r := newRig()
	r.identity.set(completeIdentity())
	r.joins.results = []commitOutcome{{err: onboarding.ErrUnavailable}}

	r.advance(t, "FAST123")
	token := r.checkpoint(t).AttemptToken

	// Simulated restart: new controller, new in-memory guards, same
	// checkpoint store.
	joins2 := &fakeJoins{results: []commitOutcome{committed("member")}}
	ctrl2 := onboarding.New(r.checkpoints, r.identity, r.invites, nil, joins2, zap.NewNop())

	d, err := ctrl2.Advance(context.Background(), visitor, "")
	if err != nil {
		t.Fatalf("Advance after restart failed: %v", err)
	}
	if d.Kind != onboarding.DirectiveGoToCrewHome {
		t.Fatalf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveGoToCrewHome)
	}
	if got := joins2.tokens[0]; got != token {
		t.Errorf("token after restart: got %q, want %q", got, token)
	}
}

// AlreadyMember recovers a join that committed before an interruption;
// the outcome is identical to a fresh commit.
func TestAdvance_AlreadyMemberIsSuccess(t *testing.T) {
	r := newRig()
	r.identity.set(completeIdentity())
	r.joins.results = []commitOutcome{{res: &onboarding.CommitResult{
		MembershipID:  "mem-9",
		CrewID:        "crew-1",
		Role:          "member",
		AlreadyMember: true,
	}}}

	d := r.advance(t, "FAST123")
	if d.Kind != onboarding.DirectiveGoToCrewHome {
		t.Fatalf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveGoToCrewHome)
	}
	if r.checkpoint(t) != nil {
		t.Error("checkpoint not cleared for already-member outcome")
	}
}

// Switching to a different invite code discards the old checkpoint and
// generates a fresh attempt token.
func TestAdvance_InviteSwitchResetsAttempt(t *testing.T) {
	r := newRig()
	r.advance(t, "FAST123")
	first := r.checkpoint(t)

	d := r.advance(t, "TRAIL42")
	if d.Kind != onboarding.DirectiveShowSignIn {
		t.Fatalf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveShowSignIn)
	}

	second := r.checkpoint(t)
	if second.InviteCode != "TRAIL42" {
		t.Errorf("InviteCode: got %q, want TRAIL42", second.InviteCode)
	}
	if second.CrewID != "crew-2" {
		t.Errorf("CrewID: got %q, want crew-2", second.CrewID)
	}
	if second.AttemptToken == first.AttemptToken {
		t.Error("attempt token not regenerated on invite switch")
	}
}

// An expired session mid-commit steps the saga back to sign-in and keeps
// the attempt token; the re-authenticated retry reuses it.
func TestAdvance_UnauthorizedStepsBack(t *testing.T) {
	r := newRig()
	r.identity.set(completeIdentity())
	r.joins.results = []commitOutcome{{err: onboarding.ErrUnauthorized}}

	d := r.advance(t, "FAST123")
	if d.Kind != onboarding.DirectiveShowSignIn {
		t.Fatalf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveShowSignIn)
	}
	cp := r.checkpoint(t)
	if cp == nil || cp.Stage != onboarding.StageAwaitingIdentity {
		t.Fatalf("Stage: got %+v, want awaiting_identity", cp)
	}
	token := cp.AttemptToken

	r.joins.mu.Lock()
	r.joins.results = []commitOutcome{committed("member")}
	r.joins.mu.Unlock()

	d = r.advance(t, "")
	if d.Kind != onboarding.DirectiveGoToCrewHome {
		t.Fatalf("Kind after re-auth: got %q, want %q", d.Kind, onboarding.DirectiveGoToCrewHome)
	}
	if got := r.joins.tokens[1]; got != token {
		t.Errorf("token after re-auth: got %q, want %q", got, token)
	}
}

// Admin role flows through from the commit response untouched.
func TestAdvance_AdminRoleFromCommit(t *testing.T) {
	r := newRig()
	r.identity.set(completeIdentity())
	r.joins.results = []commitOutcome{committed("admin")}

	d := r.advance(t, "FAST123")
	if d.Kind != onboarding.DirectiveGoToCrewHome {
		t.Fatalf("Kind: got %q, want %q", d.Kind, onboarding.DirectiveGoToCrewHome)
	}
	if d.Role != "admin" {
		t.Errorf("Role: got %q, want admin", d.Role)
	}
}

// Concurrent Advance calls while a commit is outstanding coalesce onto
// one in-flight operation: exactly one commit, one shared result.
func TestAdvance_ConcurrentCallsCoalesce(t *testing.T) {
	r := newRig()
	r.identity.set(completeIdentity())
	r.joins.block = make(chan struct{})
	r.joins.results = []commitOutcome{committed("member")}

	const callers = 4
	dirs := make([]*onboarding.Directive, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := ""
			if i == 0 {
				code = "FAST123"
			}
			dirs[i], errs[i] = r.ctrl.Advance(context.Background(), visitor, code)
		}(i)
	}

	// Let all callers reach the commit guard, then release it.
	for r.joins.callCount() == 0 {
	}
	close(r.joins.block)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
	}
	if got := r.joins.callCount(); got != 1 {
		t.Errorf("commit calls: got %d, want 1", got)
	}

	// Exactly one caller observes the committed outcome; the rest ran
	// either before the commit (enter/sign-in view of an interim stage)
	// or after the checkpoint was cleared. No caller may observe a
	// second commit or a different token.
	completedSeen := 0
	for _, d := range dirs {
		if d.Kind == onboarding.DirectiveGoToCrewHome {
			completedSeen++
		}
	}
	if completedSeen == 0 {
		t.Error("no caller observed the committed outcome")
	}
	if r.checkpoint(t) != nil {
		t.Error("checkpoint not cleared after coalesced commit")
	}
}

// Cancelling while a commit is in flight discards its result: the
// checkpoint is gone when the commit returns, so the outcome is not
// applied.
func TestCancel_DiscardsInFlightResult(t *testing.T) {
	r := newRig()
	r.identity.set(completeIdentity())
	r.joins.block = make(chan struct{})
	r.joins.results = []commitOutcome{committed("member")}

	done := make(chan *onboarding.Directive, 1)
	go func() {
		d, err := r.ctrl.Advance(context.Background(), visitor, "FAST123")
		if err != nil {
			t.Errorf("Advance failed: %v", err)
		}
		done <- d
	}()

	for r.joins.callCount() == 0 {
	}
	if err := r.ctrl.Cancel(context.Background(), visitor); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	close(r.joins.block)

	d := <-done
	if d.Kind != onboarding.DirectiveEnterInvite {
		t.Errorf("Kind: got %q, want %q (stale result discarded)", d.Kind, onboarding.DirectiveEnterInvite)
	}
	if r.checkpoint(t) != nil {
		t.Error("checkpoint resurrected after cancel")
	}
}

// At-most-once: across an arbitrary mix of advances and retries without
// a start-over, every commit carries one and the same attempt token.
func TestAdvance_AtMostOneTokenPerCode(t *testing.T) {
	r := newRig()
	r.joins.results = []commitOutcome{{err: onboarding.ErrUnavailable}}

	// Wander through the flow: resolve, sign in later, retry twice,
	// then succeed.
	r.advance(t, "FAST123")
	r.advance(t, "")
	r.identity.set(completeIdentity())
	r.advance(t, "")
	r.advance(t, "FAST123") // same code re-entered, must not reset
	r.joins.mu.Lock()
	r.joins.results = []commitOutcome{committed("member")}
	r.joins.mu.Unlock()
	r.advance(t, "")

	if r.joins.callCount() == 0 {
		t.Fatal("no commits issued")
	}
	first := r.joins.tokens[0]
	for i, tok := range r.joins.tokens {
		if tok != first {
			t.Errorf("commit %d token %q differs from %q", i, tok, first)
		}
	}
}
