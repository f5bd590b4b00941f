// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (login, logout, account creation).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Join controls logging for onboarding events (joins, invite lifecycle).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Join string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// Fall back to RemoteAddr
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.AthleteID != nil {
		fields = append(fields, zap.String("athlete_id", event.AthleteID.Hex()))
	}
	if event.CrewID != nil {
		fields = append(fields, zap.String("crew_id", event.CrewID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryJoin:
		setting = l.config.Join
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, athleteID primitive.ObjectID, authMethod, loginID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		AthleteID: &athleteID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"auth_method": authMethod,
			"login_id":    loginID,
		},
	})
}

// LoginFailedUserNotFound logs a failed login due to an unknown account.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedLoginID string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "user not found",
		Details: map[string]string{
			"attempted_login_id": attemptedLoginID,
		},
	})
}

// LoginFailedWrongPassword logs a failed login due to wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, athleteID primitive.ObjectID, loginID string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedWrongPassword,
		AthleteID:     &athleteID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "wrong password",
		Details: map[string]string{
			"login_id": loginID,
		},
	})
}

// LoginFailedUserDisabled logs a failed login due to disabled account.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, athleteID primitive.ObjectID, loginID string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserDisabled,
		AthleteID:     &athleteID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "user disabled",
		Details: map[string]string{
			"login_id": loginID,
		},
	})
}

// Logout logs an athlete logout. Accepts the string ID from SessionUser
// and converts it to an ObjectID.
func (l *Logger) Logout(ctx context.Context, r *http.Request, athleteIDStr string) {
	var athleteID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(athleteIDStr); err == nil {
		athleteID = &oid
	}

	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		AthleteID: athleteID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	})
}

// AccountCreated logs a new athlete account.
func (l *Logger) AccountCreated(ctx context.Context, r *http.Request, athleteID primitive.ObjectID, authMethod, loginID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventAccountCreated,
		AthleteID: &athleteID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"auth_method": authMethod,
			"login_id":    loginID,
		},
	})
}

// --- Join / Invite Events ---

// JoinCommitted logs a membership created through an invite.
func (l *Logger) JoinCommitted(ctx context.Context, r *http.Request, athleteID, crewID primitive.ObjectID, inviteCode, role string, alreadyMember bool) {
	details := map[string]string{
		"invite_code": inviteCode,
		"role":        role,
	}
	if alreadyMember {
		details["already_member"] = "true"
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryJoin,
		EventType: audit.EventJoinCommitted,
		AthleteID: &athleteID,
		CrewID:    &crewID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	})
}

// JoinInviteExpired logs a join that failed because the invite was
// consumed, expired, or revoked between resolution and commit.
func (l *Logger) JoinInviteExpired(ctx context.Context, r *http.Request, athleteID *primitive.ObjectID, crewID *primitive.ObjectID, inviteCode string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryJoin,
		EventType:     audit.EventJoinInviteExpired,
		AthleteID:     athleteID,
		CrewID:        crewID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "invite no longer usable",
		Details: map[string]string{
			"invite_code": inviteCode,
		},
	})
}

// JoinAbandoned logs an athlete cancelling onboarding.
func (l *Logger) JoinAbandoned(ctx context.Context, r *http.Request, athleteID *primitive.ObjectID, inviteCode string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryJoin,
		EventType: audit.EventJoinAbandoned,
		AthleteID: athleteID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"invite_code": inviteCode,
		},
	})
}

// InviteCreated logs a crew admin issuing an invite.
func (l *Logger) InviteCreated(ctx context.Context, r *http.Request, issuerID, crewID primitive.ObjectID, inviteCode string, maxUses int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryJoin,
		EventType: audit.EventInviteCreated,
		AthleteID: &issuerID,
		CrewID:    &crewID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"invite_code": inviteCode,
			"max_uses":    strconv.Itoa(maxUses),
		},
	})
}

// InviteRevoked logs a crew admin revoking an invite.
func (l *Logger) InviteRevoked(ctx context.Context, r *http.Request, issuerID, crewID primitive.ObjectID, inviteCode string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryJoin,
		EventType: audit.EventInviteRevoked,
		AthleteID: &issuerID,
		CrewID:    &crewID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"invite_code": inviteCode,
		},
	})
}
