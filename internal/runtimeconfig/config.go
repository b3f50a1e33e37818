package runtimeconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-schema-migrate/internal/domain"
)

// ErrStoreURIRequired indicates a missing connection string.
var ErrStoreURIRequired = errors.New("migrate config: store URI is required")

// ErrStoreDatabaseRequired indicates a missing target database name.
var ErrStoreDatabaseRequired = errors.New("migrate config: store database is required")

// ErrStoreTimeoutInvalid rejects negative connection timeouts.
var ErrStoreTimeoutInvalid = errors.New("migrate config: store connect timeout must be zero or positive")

// ErrPolicyInvalid rejects unknown error policies.
var ErrPolicyInvalid = errors.New("migrate config: policy is invalid")

// ErrHistoryCollectionRequired indicates an emptied history collection name.
var ErrHistoryCollectionRequired = errors.New("migrate config: history collection names are required")

var ErrLoggingProviderRequired = errors.New("migrate config: logging provider is required when logging feature is enabled")
var ErrLoggingProviderUnknown = errors.New("migrate config: logging provider is invalid")
var ErrLoggingLevelInvalid = errors.New("migrate config: logging level is invalid")
var ErrLoggingFormatInvalid = errors.New("migrate config: logging format is invalid")

// Config aggregates runtime settings for the migration engine. Fields
// intentionally use simple types so host applications can extend them later.
type Config struct {
	Policy   string
	Store    StoreConfig
	History  HistoryConfig
	Commands CommandsConfig
	Features Features
	Logging  LoggingConfig
}

// StoreConfig captures connection settings for the target database.
type StoreConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// HistoryConfig names the collections tracking migration state.
type HistoryConfig struct {
	AppliedCollection  string
	SnapshotCollection string
}

// CommandsConfig captures optional command-layer behaviour.
type CommandsConfig struct {
	Enabled bool
	// Timeout bounds a single command execution; zero disables the bound,
	// which long data migrations usually need.
	Timeout time.Duration
}

// Features toggles module functionality.
type Features struct {
	Logger bool
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string
	Level     string
	Format    string
	AddSource bool
	Focus     []string
}

// DefaultConfig returns opinionated defaults: strict policy, local store,
// console logging.
func DefaultConfig() Config {
	return Config{
		Policy: string(domain.PolicyStrict),
		Store: StoreConfig{
			URI:            "mongodb://localhost:27017",
			ConnectTimeout: 10 * time.Second,
		},
		History: HistoryConfig{
			AppliedCollection:  "schema_migrations",
			SnapshotCollection: "schema_migrations_snapshot",
		},
		Commands: CommandsConfig{Enabled: true},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
			Format:   "",
		},
	}
}

// Validate performs high-level consistency checks.
func (cfg Config) Validate() error {
	if policy := strings.ToLower(strings.TrimSpace(cfg.Policy)); policy != "" && !domain.Policy(policy).IsValid() {
		return fmt.Errorf("%w: %s", ErrPolicyInvalid, cfg.Policy)
	}
	if strings.TrimSpace(cfg.Store.URI) == "" {
		return ErrStoreURIRequired
	}
	if strings.TrimSpace(cfg.Store.Database) == "" {
		return ErrStoreDatabaseRequired
	}
	if cfg.Store.ConnectTimeout < 0 {
		return ErrStoreTimeoutInvalid
	}
	if strings.TrimSpace(cfg.History.AppliedCollection) == "" ||
		strings.TrimSpace(cfg.History.SnapshotCollection) == "" {
		return ErrHistoryCollectionRequired
	}
	if cfg.Features.Logger {
		provider := normalizeProvider(cfg.Logging.Provider)
		if provider == "" {
			return ErrLoggingProviderRequired
		}
		if !isSupportedProvider(provider) {
			return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
		}
		if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
			return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
		}
		if provider == "gologger" {
			if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
				return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
			}
		}
	}
	return nil
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
