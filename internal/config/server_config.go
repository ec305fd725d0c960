package config

// ServerConfig defines the admin HTTP server settings
type ServerConfig struct {
	ListenAddress      string   `json:"listen_address,omitempty" yaml:"listen_address,omitempty" validate:"required"`
	AuthKey            string   `json:"auth_key,omitempty" yaml:"auth_key,omitempty"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins,omitempty" yaml:"cors_allowed_origins,omitempty"`

	ReadTimeoutSeconds     int `json:"read_timeout_seconds,omitempty" yaml:"read_timeout_seconds,omitempty" validate:"omitempty,min=1"`
	WriteTimeoutSeconds    int `json:"write_timeout_seconds,omitempty" yaml:"write_timeout_seconds,omitempty" validate:"omitempty,min=1"`
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds,omitempty" yaml:"shutdown_timeout_seconds,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultServerConfig creates default server configuration
func NewDefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddress:          ":8787",
		CORSAllowedOrigins:     []string{"*"},
		ReadTimeoutSeconds:     15,
		WriteTimeoutSeconds:    60,
		ShutdownTimeoutSeconds: 10,
	}
}
