package config

const (
	defaultConfigPath           = "~/.config/audioindex/config.toml"
	defaultDataDir              = "~/.local/share/audioindex"
	defaultBlobDirName          = "audio"
	defaultIndexFileName        = "audio-index.json"
	defaultSnapshotFileName     = "audio-snapshot.json"
	defaultMode                 = ModeLocal
	defaultDriver               = DriverSQLite
	defaultDatabaseFileName     = "audio.db"
	defaultDatabaseTimeout      = 10
	defaultLocalBaseURL         = "/audio"
	defaultRegion               = "us-east-1"
	defaultLockAttempts         = 5
	defaultLockInitialBackoffMS = 50
	defaultLockMaxBackoffMS     = 1000
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults. Paths left empty
// here are derived from DataDir during normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Backend: Backend{
			Mode: defaultMode,
		},
		Storage: Storage{
			Region:       defaultRegion,
			LocalBaseURL: defaultLocalBaseURL,
		},
		Database: Database{
			Driver:         defaultDriver,
			TimeoutSeconds: defaultDatabaseTimeout,
		},
		Index: Index{
			LockAttempts:         defaultLockAttempts,
			LockInitialBackoffMS: defaultLockInitialBackoffMS,
			LockMaxBackoffMS:     defaultLockMaxBackoffMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
