package config

const (
	defaultLibraryDir                = "~/library"
	defaultLogDir                    = "~/.local/share/berth/logs"
	defaultAPIBind                   = "127.0.0.1:7311"
	defaultMoviesDir                 = "movies"
	defaultTVDir                     = "tv"
	defaultMinFileSizeMiB            = 20
	defaultTransferMode              = "auto"
	defaultMaxAttempts               = 10
	defaultActivePollSeconds         = 5
	defaultIdlePollSeconds           = 30
	defaultOrphanSweepMinutes        = 10
	defaultStartupCallTimeoutSecs    = 30
	defaultNotifyRequestTimeoutSecs  = 10
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Library: Library{
			MoviesDir:      defaultMoviesDir,
			TVDir:          defaultTVDir,
			MinFileSizeMiB: defaultMinFileSizeMiB,
		},
		Importer: Importer{
			TransferMode: defaultTransferMode,
			MaxAttempts:  defaultMaxAttempts,
		},
		Reconciler: Reconciler{
			ActivePollSeconds:         defaultActivePollSeconds,
			IdlePollSeconds:           defaultIdlePollSeconds,
			OrphanSweepMinutes:        defaultOrphanSweepMinutes,
			StartupCallTimeoutSeconds: defaultStartupCallTimeoutSecs,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeoutSecs,
			Imports:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
