package config

// Config represents the application configuration.
type Config struct {
	Source       SourceConfig       `yaml:"source"`
	Product      ProductConfig      `yaml:"product"`
	Commands     CommandsConfig     `yaml:"commands"`
	Destinations DestinationsConfig `yaml:"destinations"`
	Logging      LoggingConfig      `yaml:"logging"`
	Staging      StagingConfig      `yaml:"staging"`
	Triage       TriageConfig       `yaml:"triage"`
	Daemon       DaemonConfig       `yaml:"daemon"`
	History      HistoryConfig      `yaml:"history"`
	Notify       NotifyConfig       `yaml:"notify"`
}

// SourceConfig locates the product source tree.
type SourceConfig struct {
	Path string `yaml:"path"`
	// RevisionRepo is the git repository (relative to Path) whose HEAD is
	// recorded as the run's source revision.
	RevisionRepo string `yaml:"revision_repo"`
}

// ProductConfig describes the product's build output conventions.
type ProductConfig struct {
	ArtifactPrefix string `yaml:"artifact_prefix"`
	ArtifactSuffix string `yaml:"artifact_suffix"`
	// OutputDir is relative to the source path; "{target}" is replaced by the target name.
	OutputDir    string `yaml:"output_dir"`
	DeviceDir    string `yaml:"device_dir"`
	CodenameFile string `yaml:"codename_file"`
	CodenameKey  string `yaml:"codename_key"`
	TargetEnv    string `yaml:"target_env"`
}

// CommandsConfig names the external programs the pipeline drives.
type CommandsConfig struct {
	HelperDir string `yaml:"helper_dir"`
	Build     string `yaml:"build"`
	Sync      string `yaml:"sync"`
	SSH       string `yaml:"ssh"`
	Rsync     string `yaml:"rsync"`
}

// DestinationsConfig holds file-level destination defaults. CLI flags and
// DROID_* environment variables take precedence over these.
type DestinationsConfig struct {
	Remote RemoteConfig `yaml:"remote"`
	Local  LocalConfig  `yaml:"local"`
}

// RemoteConfig is the upload host reached over ssh/rsync.
type RemoteConfig struct {
	Host string `yaml:"host"`
	User string `yaml:"user"`
	Path string `yaml:"path"`
	Port string `yaml:"port"`
}

// LocalConfig is the local mirror directory.
type LocalConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls the per-run script log.
type LoggingConfig struct {
	// Dir overrides the workflow's log directory (relative paths resolve against the source path).
	Dir    string    `yaml:"dir"`
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// StagingConfig controls where artifacts are staged before shipping.
type StagingConfig struct {
	// Base is the parent directory for the staging directory. Empty selects
	// /dev/shm when present, otherwise the system temp directory.
	Base string `yaml:"base"`
}

// TriageConfig overrides the build log extractors.
type TriageConfig struct {
	Extractors []ExtractorConfig `yaml:"extractors"`
}

// ExtractorConfig is one category of build log excerpt.
type ExtractorConfig struct {
	Label   string `yaml:"label"`
	Pattern string `yaml:"pattern"`
	Before  int    `yaml:"before"`
	After   int    `yaml:"after"`
}

// DaemonConfig configures periodic builds.
type DaemonConfig struct {
	Workflow Workflow `yaml:"workflow"`
	Targets  []string `yaml:"targets"`
	// Schedule is a cron expression; Interval (a Go duration) is used when Schedule is empty.
	Schedule    string `yaml:"schedule"`
	Interval    string `yaml:"interval"`
	Listen      string `yaml:"listen"`
	WatchConfig *bool  `yaml:"watch_config"`
}

// HistoryConfig enables the SQLite run history.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// NotifyConfig enables run notifications over NATS.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// WatchEnabled reports whether the daemon should reload on config changes (default true).
func (d DaemonConfig) WatchEnabled() bool {
	return d.WatchConfig == nil || *d.WatchConfig
}
