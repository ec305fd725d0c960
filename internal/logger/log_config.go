package logger

// Default log settings
const (
	DefaultLogFormat     = "console"
	DefaultLogLevel      = "info"
	DefaultMaxLogBackups = 3
	DefaultMaxLogSizeMB  = 100
)

// FileLogConfig defines logging configuration from the config file
type FileLogConfig struct {
	LogFile       string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	LogFormat     string `json:"log_format,omitempty" yaml:"log_format,omitempty" validate:"omitempty,logformat"`
	LogLevel      string `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,loglevel"`
	MaxLogBackups int    `json:"max_log_backups,omitempty" yaml:"max_log_backups,omitempty"`
	MaxLogSizeMB  int    `json:"max_log_size_mb,omitempty" yaml:"max_log_size_mb,omitempty"`
}

// NewDefaultFileLogConfig creates default log configuration.
// LogFile is empty by default, which disables file output.
func NewDefaultFileLogConfig() FileLogConfig {
	return FileLogConfig{
		LogFormat:     DefaultLogFormat,
		LogLevel:      DefaultLogLevel,
		MaxLogBackups: DefaultMaxLogBackups,
		MaxLogSizeMB:  DefaultMaxLogSizeMB,
	}
}
