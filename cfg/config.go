package cfg

// Config is the kernel's complete boot-time configuration. It is populated
// by cmd's cobra/viper binding (flags > config file > defaults; environment
// variables are not consulted) and validated and rationalized before any
// subsystem reads it.
type Config struct {
	// DiskImagePath holds the backing disk image for the MINIX-compatible
	// filesystem (C5). A zero-length path means "use an in-memory
	// scratch disk", which the test suite relies on.
	DiskImagePath string `mapstructure:"disk-image"`
	ReadOnly      bool   `mapstructure:"read-only"`

	// Task table (C6/C7).
	NRTasks int `mapstructure:"nr-tasks"`
	NROpen  int `mapstructure:"nr-open"`

	// Buffer cache / block layer (C3/C4).
	NRBuf     int `mapstructure:"nr-buf"`
	NRRequest int `mapstructure:"nr-request"`

	// Filesystem engine (C5).
	NRInode int `mapstructure:"nr-inode"`
	NRSuper int `mapstructure:"nr-super"`
	NRFile  int `mapstructure:"nr-file"`

	// NoTruncateNames mirrors the on-disk NO_TRUNCATE build option: when
	// true, directory entry names longer than 14 bytes fail with ENAMETOOLONG
	// instead of being silently truncated.
	NoTruncateNames bool `mapstructure:"no-truncate-names"`

	// Virtual memory (C1/C2).
	PagingCapMiB int `mapstructure:"paging-cap-mib"`

	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Severity LogSeverity `mapstructure:"severity"`
	Format   LogFormat   `mapstructure:"format"`
}

// NR_TASKS etc. default values, chosen to match spec.md's parenthetical
// examples.
const (
	DefaultNRTasks      = 64
	DefaultNROpen       = 20
	DefaultNRBuf        = 256
	DefaultNRRequest    = 32
	DefaultNRInode      = 128
	DefaultNRSuper      = 8
	DefaultNRFile       = 128
	DefaultPagingCapMiB = 16
)

// DefaultConfig returns the configuration used when no flags, config file
// or environment variables override it. Mirrors the teacher's
// cfg/defaults.go pattern of a single constructor consulted by both the
// CLI default-binding code and tests.
func DefaultConfig() Config {
	return Config{
		NRTasks:      DefaultNRTasks,
		NROpen:       DefaultNROpen,
		NRBuf:        DefaultNRBuf,
		NRRequest:    DefaultNRRequest,
		NRInode:      DefaultNRInode,
		NRSuper:      DefaultNRSuper,
		NRFile:       DefaultNRFile,
		PagingCapMiB: DefaultPagingCapMiB,
		Logging: LoggingConfig{
			Severity: InfoLogSeverity,
			Format:   TextLogFormat,
		},
	}
}
