// internal/app/onboarding/controller.go
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/invitecode"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Controller is the saga state machine. Every onboarding screen calls
// Advance on load; the controller re-derives identity and profile facts
// live, reuses the checkpoint's invite code / crew id / attempt token,
// performs at most one commit per attempt token, and answers with a
// single directive.
//
// One Controller serves all visitors; per-visitor state lives in the
// CheckpointStore, keyed by an opaque visitor token.
type Controller struct {
	checkpoints CheckpointStore
	identity    IdentityResolver
	invites     InviteResolver
	gate        ProfileGate
	joins       JoinExecutor
	log         *zap.Logger

	now      func() time.Time
	newToken func() string

	mu       sync.Mutex
	locks    map[string]*keyLock
	inflight map[string]*inflightCommit
}

// keyLock serializes the non-blocking phase of Advance per visitor so
// that two concurrent calls cannot mint two attempt tokens for the same
// invite code.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// inflightCommit coalesces concurrent commits: a second Advance arriving
// while a commit is outstanding waits for the same result instead of
// issuing a second commit.
type inflightCommit struct {
	token string
	done  chan struct{}
	res   *CommitResult
	err   error
}

// New constructs a Controller over the given collaborators.
func New(cps CheckpointStore, ids IdentityResolver, inv InviteResolver, gate ProfileGate, joins JoinExecutor, logger *zap.Logger) *Controller {
	if gate == nil {
		gate = HandleGate{}
	}
	return &Controller{
		checkpoints: cps,
		identity:    ids,
		invites:     inv,
		gate:        gate,
		joins:       joins,
		log:         logger,
		now:         func() time.Time { return time.Now().UTC() },
		newToken:    uuid.NewString,
		locks:       make(map[string]*keyLock),
		inflight:    make(map[string]*inflightCommit),
	}
}

// Advance computes the current saga state for the visitor identified by
// key and either performs the next irreversible step or returns a
// directive telling the caller which screen to show.
//
// rawCode is the invite code the visitor just supplied, or "" when the
// call is a resumption (page load, return from sign-in, retry). External
// facts always win over the checkpoint: identity and profile state are
// re-derived on every call.
func (c *Controller) Advance(ctx context.Context, key, rawCode string) (*Directive, error) {
	lock := c.acquire(key)

	cp, err := c.checkpoints.Load(ctx, key)
	if err != nil {
		c.release(key, lock)
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	code := ""
	if rawCode != "" {
		code = invitecode.Normalize(rawCode)
		if err := invitecode.Validate(code); err != nil {
			c.release(key, lock)
			return &Directive{Kind: DirectiveInviteInvalid, Err: err}, nil
		}
	}

	// A different code than the checkpoint holds restarts the saga; the
	// old crew id and attempt token are discarded with it.
	if cp != nil && code != "" && cp.InviteCode != code {
		c.log.Info("invite code changed, restarting saga",
			zap.String("old_code", cp.InviteCode),
			zap.String("new_code", code))
		if err := c.checkpoints.Clear(ctx, key); err != nil {
			c.release(key, lock)
			return nil, fmt.Errorf("clear checkpoint: %w", err)
		}
		cp = nil
	}

	var preview *CrewPreview
	if cp == nil {
		if code == "" {
			c.release(key, lock)
			return &Directive{Kind: DirectiveEnterInvite}, nil
		}
		preview, err = c.invites.Resolve(ctx, code)
		if err != nil {
			c.release(key, lock)
			switch {
			case errors.Is(err, ErrInviteNotFound):
				return &Directive{Kind: DirectiveInviteInvalid, Err: err}, nil
			case Transient(err):
				return &Directive{Kind: DirectiveEnterInvite, Err: err}, nil
			default:
				return nil, fmt.Errorf("resolve invite: %w", err)
			}
		}
		now := c.now()
		cp = &Checkpoint{
			InviteCode:   code,
			CrewID:       preview.CrewID,
			Stage:        StageInviteResolved,
			AttemptToken: c.newToken(),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := c.checkpoints.Save(ctx, key, cp); err != nil {
			c.release(key, lock)
			return nil, fmt.Errorf("save checkpoint: %w", err)
		}
		c.log.Info("invite resolved",
			zap.String("code", code),
			zap.String("crew_id", cp.CrewID))
	}

	// Live facts beat the checkpoint from here on.
	id, err := c.identity.CurrentIdentity(ctx)
	if err != nil {
		c.release(key, lock)
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	if id == nil {
		err := c.transition(ctx, key, cp, StageAwaitingIdentity)
		c.release(key, lock)
		if err != nil {
			return nil, err
		}
		return &Directive{Kind: DirectiveShowSignIn, Preview: preview, CrewID: cp.CrewID}, nil
	}

	if !c.gate.IsComplete(id) {
		err := c.transition(ctx, key, cp, StageAwaitingProfile)
		c.release(key, lock)
		if err != nil {
			return nil, err
		}
		return &Directive{Kind: DirectiveCompleteProfile, Preview: preview, CrewID: cp.CrewID}, nil
	}

	if err := c.transition(ctx, key, cp, StageJoining); err != nil {
		c.release(key, lock)
		return nil, err
	}

	// The advance lock is released inside commit before the network call
	// so that re-entrant calls can reach the coalescing guard.
	res, err := c.commit(ctx, key, lock, cp, *id)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil, err
	}

	// Stale-result check: the visitor may have cancelled or switched
	// codes while the commit was in flight. Results for a token the
	// checkpoint no longer holds are discarded.
	cur, loadErr := c.checkpoints.Load(ctx, key)
	if loadErr != nil {
		return nil, fmt.Errorf("reload checkpoint: %w", loadErr)
	}
	if cur == nil || cur.AttemptToken != cp.AttemptToken {
		c.log.Info("discarding stale commit result",
			zap.String("code", cp.InviteCode))
		return &Directive{Kind: DirectiveEnterInvite}, nil
	}

	switch {
	case err == nil:
		if err := c.checkpoints.Clear(ctx, key); err != nil {
			return nil, fmt.Errorf("clear checkpoint: %w", err)
		}
		c.log.Info("membership committed",
			zap.String("crew_id", res.CrewID),
			zap.String("role", res.Role),
			zap.Bool("already_member", res.AlreadyMember))
		return &Directive{
			Kind:         DirectiveGoToCrewHome,
			CrewID:       res.CrewID,
			Role:         res.Role,
			MembershipID: res.MembershipID,
			InviteCode:   cp.InviteCode,
		}, nil

	case errors.Is(err, ErrInviteConsumed):
		if err := c.checkpoints.Clear(ctx, key); err != nil {
			return nil, fmt.Errorf("clear checkpoint: %w", err)
		}
		return &Directive{Kind: DirectiveInviteExpired, Err: ErrInviteConsumed}, nil

	case errors.Is(err, ErrInviteNotFound):
		// The code vanished (revoked or expired) between resolve and
		// commit. Terminal for this code.
		if err := c.checkpoints.Clear(ctx, key); err != nil {
			return nil, fmt.Errorf("clear checkpoint: %w", err)
		}
		return &Directive{Kind: DirectiveInviteInvalid, Err: ErrInviteNotFound}, nil

	case errors.Is(err, ErrUnauthorized):
		// Session expired mid-commit: step back, keep the attempt token.
		lock = c.acquire(key)
		terr := c.transition(ctx, key, cur, StageAwaitingIdentity)
		c.release(key, lock)
		if terr != nil {
			return nil, terr
		}
		return &Directive{Kind: DirectiveShowSignIn, CrewID: cur.CrewID}, nil

	case Transient(err):
		// Checkpoint stays at Joining; retrying resends the same token.
		return &Directive{Kind: DirectiveRetryJoin, CrewID: cur.CrewID, Err: err}, nil

	default:
		return nil, fmt.Errorf("commit membership: %w", err)
	}
}

// Cancel implements the explicit "start over" action: the checkpoint is
// cleared regardless of in-flight calls. Any commit still outstanding
// fails the stale-result check when it returns and is discarded.
func (c *Controller) Cancel(ctx context.Context, key string) error {
	lock := c.acquire(key)
	defer c.release(key, lock)
	if err := c.checkpoints.Clear(ctx, key); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	c.log.Info("saga abandoned by visitor")
	return nil
}

// Current returns the visitor's checkpoint, or nil when none exists.
// Read-only; screens use it to label resumption states.
func (c *Controller) Current(ctx context.Context, key string) (*Checkpoint, error) {
	return c.checkpoints.Load(ctx, key)
}

// transition moves the checkpoint to the given stage, persisting only on
// an actual change. The attempt token is never touched here.
func (c *Controller) transition(ctx context.Context, key string, cp *Checkpoint, to Stage) error {
	if cp.Stage == to {
		return nil
	}
	c.log.Debug("saga stage transition",
		zap.String("from", string(cp.Stage)),
		zap.String("to", string(to)))
	cp.Stage = to
	cp.UpdatedAt = c.now()
	if err := c.checkpoints.Save(ctx, key, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// commit sends the join commit, coalescing concurrent callers onto one
// in-flight operation per visitor. The caller must hold the advance
// lock; commit releases it before blocking on the network.
func (c *Controller) commit(ctx context.Context, key string, lock *keyLock, cp *Checkpoint, id Identity) (*CommitResult, error) {
	c.mu.Lock()
	if f, ok := c.inflight[key]; ok && f.token == cp.AttemptToken {
		c.mu.Unlock()
		c.release(key, lock)
		select {
		case <-f.done:
			return f.res, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &inflightCommit{token: cp.AttemptToken, done: make(chan struct{})}
	c.inflight[key] = f
	c.mu.Unlock()
	c.release(key, lock)

	f.res, f.err = c.joins.Commit(ctx, id, cp.InviteCode, cp.AttemptToken)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(f.done)

	return f.res, f.err
}

// acquire takes the per-visitor advance lock, creating it on first use.
func (c *Controller) acquire(key string) *keyLock {
	c.mu.Lock()
	l := c.locks[key]
	if l == nil {
		l = &keyLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()
	l.mu.Lock()
	return l
}

// release drops the advance lock and frees it once unused.
func (c *Controller) release(key string, l *keyLock) {
	l.mu.Unlock()
	c.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, key)
	}
	c.mu.Unlock()
}
