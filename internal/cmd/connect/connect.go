// Package connect parses connect command flags and launches the connect runtime.
package connect

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/socialconnect/internal/platform/cmd"
	connectserver "github.com/louisbranch/socialconnect/internal/services/connect/app"
	"github.com/louisbranch/socialconnect/internal/services/connect/socialplatform"
)

// Config holds connect command configuration.
type Config struct {
	Port           int                     `env:"SOCIALCONNECT_PORT" envDefault:"8094"`
	DBPath         string                  `env:"SOCIALCONNECT_DB_PATH" envDefault:"data/connect.db"`
	MasterSecret   string                  `env:"SOCIALCONNECT_MASTER_SECRET"`
	SweepInterval  time.Duration           `env:"SOCIALCONNECT_SWEEP_INTERVAL" envDefault:"5m"`
	AuditRetention time.Duration           `env:"SOCIALCONNECT_AUDIT_RETENTION" envDefault:"2160h"`
	KeyCacheSize   int                     `env:"SOCIALCONNECT_KEY_CACHE_SIZE" envDefault:"1024"`
	KeyCacheTTL    time.Duration           `env:"SOCIALCONNECT_KEY_CACHE_TTL" envDefault:"1h"`
	Platforms      socialplatform.Settings `envPrefix:"SOCIALCONNECT_"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The connect health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The connect SQLite database path")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Expired state and audit sweep interval")
	fs.DurationVar(&cfg.AuditRetention, "audit-retention", cfg.AuditRetention, "Audit event retention (0 keeps forever)")
	fs.IntVar(&cfg.KeyCacheSize, "key-cache-size", cfg.KeyCacheSize, "Derived workspace key cache size (0 disables)")
	fs.DurationVar(&cfg.KeyCacheTTL, "key-cache-ttl", cfg.KeyCacheTTL, "Derived workspace key cache TTL")
	fs.StringVar(&cfg.Platforms.CallbackBaseURL, "callback-base-url", cfg.Platforms.CallbackBaseURL, "Public base URL for OAuth callbacks")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var runServer = connectserver.Run

// Run starts the connect runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceConnect, func(runCtx context.Context) error {
		return runServer(runCtx, connectserver.RuntimeConfig{
			Port:           cfg.Port,
			DBPath:         cfg.DBPath,
			MasterSecret:   cfg.MasterSecret,
			SweepInterval:  cfg.SweepInterval,
			AuditRetention: cfg.AuditRetention,
			KeyCacheSize:   cfg.KeyCacheSize,
			KeyCacheTTL:    cfg.KeyCacheTTL,
			Platforms:      cfg.Platforms,
		})
	})
}
