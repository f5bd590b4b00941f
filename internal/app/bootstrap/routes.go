// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	authgooglefeature "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/authgoogle"
	crewsfeature "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/crews"
	errorsfeature "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/errors"
	healthfeature "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/health"
	homefeature "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/home"
	joinfeature "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/join"
	loginfeature "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/login"
	logoutfeature "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/logout"
	profilefeature "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/profile"
	athletestore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/athletes"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/store/audit"
	checkpointstore "github.com/GoFast-Athlete-Training/crewhub/internal/app/store/checkpoints"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/store/oauthstate"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auditlog"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this
// WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and the Startup hook have completed. CrewHub initializes the template
// engine, applies session and CSRF middleware, and mounts the feature
// routers: home, join, login, logout, Google sign-in, profile, crews,
// health, and the error pages.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase
	secure := coreCfg.Env == "prod"

	// Session manager; secure cookies are enabled in production mode.
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// LoadSessionUser fetches fresh athlete data on each request so
	// disabled accounts and profile updates take effect immediately.
	sessionMgr.SetUserFetcher(athletestore.NewFetcher(db))

	// Boot the template engine once at startup. Dev mode enables
	// template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth: appCfg.AuditLogAuth,
		Join: appCfg.AuditLogJoin,
	})

	r := chi.NewRouter()

	// Global middleware: session user loading, then CSRF protection for
	// all unsafe methods. Form templates carry the token via viewdata.
	r.Use(sessionMgr.LoadSessionUser)
	r.Use(csrf.Protect([]byte(appCfg.CSRFKey),
		csrf.Secure(secure),
		csrf.Path("/"),
	))

	// Health check endpoint for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Static assets with pre-compressed file support (gzip/brotli).
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	// Landing page with the invite-code entry box.
	homeHandler := homefeature.NewHandler(db, errLog, logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	// Invite-to-membership onboarding.
	joinHandler := joinfeature.NewHandler(db, checkpointstore.New(db), errLog, auditLog, secure, logger)
	r.Mount("/join", joinfeature.Routes(joinHandler))

	// Authentication.
	googleHandler := authgooglefeature.NewHandler(db, sessionMgr, errLog, auditLog, oauthstate.New(db),
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
	r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))

	loginHandler := loginfeature.NewHandler(db, sessionMgr, errLog, auditLog, googleHandler.IsConfigured(), logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLog, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Profile completion and editing.
	profileHandler := profilefeature.NewHandler(db, errLog, logger)
	r.Mount("/profile", profilefeature.Routes(profileHandler))

	// Crew pages and invite management.
	crewsHandler := crewsfeature.NewHandler(db, errLog, auditLog, logger)
	r.Mount("/crews", crewsfeature.Routes(crewsHandler))

	// Error pages.
	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)

	return r, nil
}
