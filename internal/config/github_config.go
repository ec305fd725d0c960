package config

// GitHubConfig defines settings for the GitHub release source and dispatch clients
type GitHubConfig struct {
	APIBaseURL string `json:"api_base_url,omitempty" yaml:"api_base_url,omitempty" validate:"omitempty,url"`

	// ReadTokenSecret names the secret holding the token used for release
	// fetches. The token is optional; without it the client runs tokenless
	// against the public API quota.
	ReadTokenSecret string `json:"read_token_secret,omitempty" yaml:"read_token_secret,omitempty"`

	// DispatchTokenSecret names the default secret for dispatch credentials,
	// used when a monitor does not carry its own override.
	DispatchTokenSecret string `json:"dispatch_token_secret,omitempty" yaml:"dispatch_token_secret,omitempty"`

	RequestTimeoutSeconds int `json:"request_timeout_seconds,omitempty" yaml:"request_timeout_seconds,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultGitHubConfig creates default GitHub client configuration
func NewDefaultGitHubConfig() GitHubConfig {
	return GitHubConfig{
		APIBaseURL:            "https://api.github.com",
		ReadTokenSecret:       "GITHUB_TOKEN",
		DispatchTokenSecret:   "GITHUB_PAT",
		RequestTimeoutSeconds: 20,
	}
}
