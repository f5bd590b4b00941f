// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	uierrors "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/errors"
	athletestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/athletes"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/store/oauthstate"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auditlog"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auth"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/normalize"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/timeouts"
	"github.com/GoFast-Athlete-Training/crewhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Handler handles Google OAuth sign-in. Accounts are provisioned on
// first sign-in: a new Google athlete starts with no handle and is
// routed through profile completion before they can join a crew.
type Handler struct {
	DB         *mongo.Database
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Athletes   *athletestore.Store
	StateStore *oauthstate.Store

	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	stateStore *oauthstate.Store,
	clientID, clientSecret, baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		DB:           db,
		Log:          logger,
		SessionMgr:   sessionMgr,
		ErrLog:       errLog,
		AuditLog:     audit,
		Athletes:     athletestore.New(db),
		StateStore:   stateStore,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
	}
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured reports whether Google OAuth credentials are present.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Initiates the Google OAuth flow by redirecting to Google's consent screen.   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		http.Redirect(w, r, "/login?error=google_not_configured", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	// The return URL rides on the server-side state record, not the URL
	// Google sees, so a sign-in started mid-join resumes the join flow.
	returnURL := query.Get(r, "return")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	expiresAt := time.Now().UTC().Add(10 * time.Minute)
	if err := h.StateStore.Save(ctx, state, returnURL, expiresAt); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	url := h.oauth2Config().AuthCodeURL(state, oauth2.AccessTypeOffline)

	h.Log.Debug("initiating Google OAuth flow",
		zap.String("return_url", returnURL))

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Exchanges the code, fetches user info, finds or provisions the athlete,      |
| and establishes the session.                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		http.Redirect(w, r, "/login?error=google_denied", http.StatusSeeOther)
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	returnURL, valid, err := h.StateStore.Validate(ctxTimeout, state)
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		http.Redirect(w, r, "/login?error=invalid_code", http.StatusSeeOther)
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		http.Redirect(w, r, "/login?error=token_exchange", http.StatusSeeOther)
		return
	}

	googleUser, err := fetchGoogleUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		http.Redirect(w, r, "/login?error=user_info", http.StatusSeeOther)
		return
	}

	h.Log.Debug("Google user info fetched",
		zap.String("google_id", googleUser.ID),
		zap.String("email", googleUser.Email))

	athlete, created, err := h.findOrCreateAthlete(ctxTimeout, googleUser)
	if err != nil {
		if errors.Is(err, errAthleteDisabled) {
			h.AuditLog.LoginFailedUserDisabled(ctx, r, athlete.ID, googleUser.Email)
			http.Redirect(w, r, "/login?error=account_disabled", http.StatusSeeOther)
			return
		}
		h.Log.Error("failed to resolve Google athlete", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	if created {
		h.AuditLog.AccountCreated(ctx, r, athlete.ID, "google", athlete.Email)
	}

	if err := h.SessionMgr.Establish(w, r, athlete.ID.Hex()); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("email", athlete.Email))
		http.Redirect(w, r, "/login?error=session", http.StatusSeeOther)
		return
	}

	h.AuditLog.LoginSuccess(ctx, r, athlete.ID, "google", athlete.Email)

	h.Log.Info("athlete signed in via Google OAuth",
		zap.String("athlete_id", athlete.ID.Hex()),
		zap.Bool("provisioned", created))

	dest := urlutil.SafeReturn(returnURL, "", "/")
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Athlete lookup & provisioning                                                |
*─────────────────────────────────────────────────────────────────────────────*/

var errAthleteDisabled = errors.New("athlete disabled")

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// fetchGoogleUserInfo retrieves user information from Google's userinfo endpoint.
func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &info, nil
}

// findOrCreateAthlete resolves the Google identity to an athlete account:
//  1. auth_return_id match (previously linked Google account)
//  2. email match with google auth (links the Google ID)
//  3. otherwise provisions a fresh account with no handle
func (h *Handler) findOrCreateAthlete(ctx context.Context, gu *googleUserInfo) (*models.Athlete, bool, error) {
	a, err := h.Athletes.GetByAuthReturnID(ctx, gu.ID)
	if err == nil {
		if normalize.Status(a.Status) == "disabled" {
			return a, false, errAthleteDisabled
		}
		return a, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	a, err = h.Athletes.GetByEmail(ctx, gu.Email)
	if err == nil {
		if normalize.AuthMethod(a.AuthMethod) == "google" {
			if a.AuthReturnID == nil || *a.AuthReturnID == "" {
				if linkErr := h.linkAuthReturnID(ctx, a, gu.ID); linkErr != nil {
					h.Log.Warn("failed to link Google account id",
						zap.Error(linkErr),
						zap.String("athlete_id", a.ID.Hex()))
				}
			}
			if normalize.Status(a.Status) == "disabled" {
				return a, false, errAthleteDisabled
			}
			return a, false, nil
		}
		// Email exists with password auth. Refuse the silent takeover.
		return nil, false, fmt.Errorf("email %s already registered with password auth", gu.Email)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	googleID := gu.ID
	created, err := h.Athletes.Create(ctx, models.Athlete{
		FullName:     gu.Name,
		Email:        gu.Email,
		AuthMethod:   "google",
		AuthReturnID: &googleID,
	})
	if err != nil {
		return nil, false, err
	}
	return &created, true, nil
}

func (h *Handler) linkAuthReturnID(ctx context.Context, a *models.Athlete, googleID string) error {
	_, err := h.DB.Collection("athletes").UpdateOne(ctx,
		bson.M{"_id": a.ID},
		bson.M{"$set": bson.M{"auth_return_id": googleID}},
	)
	return err
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
