package migrate

import "github.com/goliatone/go-schema-migrate/internal/runtimeconfig"

var (
	ErrStoreURIRequired          = runtimeconfig.ErrStoreURIRequired
	ErrStoreDatabaseRequired     = runtimeconfig.ErrStoreDatabaseRequired
	ErrStoreTimeoutInvalid       = runtimeconfig.ErrStoreTimeoutInvalid
	ErrPolicyInvalid             = runtimeconfig.ErrPolicyInvalid
	ErrHistoryCollectionRequired = runtimeconfig.ErrHistoryCollectionRequired
	ErrLoggingProviderRequired   = runtimeconfig.ErrLoggingProviderRequired
	ErrLoggingProviderUnknown    = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid       = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid      = runtimeconfig.ErrLoggingFormatInvalid
)

type (
	Config         = runtimeconfig.Config
	StoreConfig    = runtimeconfig.StoreConfig
	HistoryConfig  = runtimeconfig.HistoryConfig
	CommandsConfig = runtimeconfig.CommandsConfig
	Features       = runtimeconfig.Features
	LoggingConfig  = runtimeconfig.LoggingConfig
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}
