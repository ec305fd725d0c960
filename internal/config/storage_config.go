package config

// StorageConfig defines where per-monitor durable state is kept
type StorageConfig struct {
	SQLiteDBPath string `json:"sqlite_db_path,omitempty" yaml:"sqlite_db_path,omitempty" validate:"required"`
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		SQLiteDBPath: "data/tagwatch.db",
	}
}
