package config

import "time"

// MonitorDefaultsConfig supplies scheduling defaults applied to monitors whose
// registration request leaves the corresponding field unset.
type MonitorDefaultsConfig struct {
	CheckIntervalSeconds int `json:"check_interval_seconds,omitempty" yaml:"check_interval_seconds,omitempty" validate:"omitempty,min=1"`
	RetryIntervalSeconds int `json:"retry_interval_seconds,omitempty" yaml:"retry_interval_seconds,omitempty" validate:"omitempty,min=1"`
	InitialDelaySeconds  int `json:"initial_delay_seconds,omitempty" yaml:"initial_delay_seconds,omitempty" validate:"omitempty,min=0"`

	// CycleTimeoutSeconds bounds one full check cycle (fetch plus dispatch)
	CycleTimeoutSeconds int `json:"cycle_timeout_seconds,omitempty" yaml:"cycle_timeout_seconds,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultMonitorDefaultsConfig creates default monitor scheduling configuration
func NewDefaultMonitorDefaultsConfig() MonitorDefaultsConfig {
	return MonitorDefaultsConfig{
		CheckIntervalSeconds: 3600,
		RetryIntervalSeconds: 300,
		InitialDelaySeconds:  0,
		CycleTimeoutSeconds:  60,
	}
}

// CycleTimeout returns the per-cycle deadline as a duration
func (c MonitorDefaultsConfig) CycleTimeout() time.Duration {
	return time.Duration(c.CycleTimeoutSeconds) * time.Second
}
