// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (ports, TLS,
// logging level, request limits). AppConfig is everything specific to
// CrewHub: connection strings, cookie keys, OAuth credentials, and
// audit modes. The struct is passed to most lifecycle hooks, so any
// configuration needed during startup, request handling, or shutdown
// lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: crewhub-session)
	SessionDomain string // Cookie domain (blank means current host)

	// CSRF protection
	CSRFKey string // 32-byte key for gorilla/csrf token signing

	// Base URL for OAuth callbacks and links in rendered pages
	BaseURL string // e.g., "https://crewhub.run" or "http://localhost:3000"

	// Google OAuth configuration (sign-in is hidden when unset)
	GoogleClientID     string
	GoogleClientSecret string

	// Audit logging modes: "all" (db+log), "db", "log", or "off"
	AuditLogAuth string
	AuditLogJoin string
}
