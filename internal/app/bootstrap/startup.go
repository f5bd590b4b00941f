// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/resources"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()

	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("database timeouts overridden from environment",
			zap.Int("overrides", n))
	}
	return nil
}
