package models

import (
	"fmt"
	"time"
)

// BaseConfig identifies one upstream -> downstream tracking relationship
type BaseConfig struct {
	UpstreamOwner   string `json:"upstream_owner"`
	UpstreamRepo    string `json:"upstream_repo"`
	DownstreamOwner string `json:"downstream_owner"`
	DownstreamRepo  string `json:"downstream_repo"`

	// DispatchTokenSecret names the secret holding the dispatch credential.
	// Empty means the globally configured default secret name is used.
	DispatchTokenSecret string `json:"dispatch_token_secret,omitempty"`
}

// UniqueKey derives the deterministic monitor key for this relationship
func (b BaseConfig) UniqueKey() string {
	return fmt.Sprintf("%s/%s->%s/%s", b.UpstreamOwner, b.UpstreamRepo, b.DownstreamOwner, b.DownstreamRepo)
}

// TimeConfig holds the scheduling periods of a monitor. Values are stored as
// whole seconds so they survive JSON round-trips through the state store.
type TimeConfig struct {
	CheckIntervalSeconds int `json:"check_interval_seconds"`
	RetryIntervalSeconds int `json:"retry_interval_seconds"`
	InitialDelaySeconds  int `json:"initial_delay_seconds"`
}

// CheckInterval is the steady-state re-check period
func (tc TimeConfig) CheckInterval() time.Duration {
	return time.Duration(tc.CheckIntervalSeconds) * time.Second
}

// RetryInterval is the period used after a failed cycle
func (tc TimeConfig) RetryInterval() time.Duration {
	return time.Duration(tc.RetryIntervalSeconds) * time.Second
}

// InitialDelay is the delay before the very first check
func (tc TimeConfig) InitialDelay() time.Duration {
	return time.Duration(tc.InitialDelaySeconds) * time.Second
}

// MonitorConfig is the immutable configuration of one monitor actor
type MonitorConfig struct {
	UniqueKey string         `json:"unique_key"`
	Base      BaseConfig     `json:"base_config"`
	Time      TimeConfig     `json:"time_config"`
	Mode      ComparisonMode `json:"comparison_mode"`
}

// NewMonitorConfig builds a MonitorConfig with its key derived from the base config
func NewMonitorConfig(base BaseConfig, tc TimeConfig, mode ComparisonMode) MonitorConfig {
	return MonitorConfig{
		UniqueKey: base.UniqueKey(),
		Base:      base,
		Time:      tc,
		Mode:      mode,
	}
}

// MonitorState is the mutable, persisted state of one monitor actor
type MonitorState struct {
	// CurrentVersion is the last release considered delivered, nil until the
	// first successful check-and-dispatch.
	CurrentVersion      *ReleaseRecord `json:"current_version,omitempty"`
	Paused              bool           `json:"paused"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
}

// MonitorRecord is the per-key durable state slot: config plus mutable state
type MonitorRecord struct {
	Config MonitorConfig `json:"config"`
	State  MonitorState  `json:"state"`
}

// MonitorSnapshot is one row of a registry listing. Err carries a per-entry
// read failure without aborting the rest of the listing.
type MonitorSnapshot struct {
	UniqueKey string        `json:"unique_key"`
	Config    MonitorConfig `json:"config"`
	State     MonitorState  `json:"state"`
	Phase     string        `json:"phase"`
	Err       string        `json:"error,omitempty"`
}
