// Package secrets resolves credential references to credential values.
// Configuration and persisted monitor state only ever carry the name of a
// secret, never the secret itself.
package secrets

import "os"

// Provider resolves a secret name to its value
type Provider interface {
	Secret(name string) (string, bool)
}

// EnvProvider resolves secrets from process environment variables
type EnvProvider struct{}

// NewEnvProvider creates an environment-backed secret provider
func NewEnvProvider() EnvProvider {
	return EnvProvider{}
}

// Secret returns the value of the environment variable with the given name.
// Unset and empty variables both count as missing.
func (EnvProvider) Secret(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	value := os.Getenv(name)
	if value == "" {
		return "", false
	}
	return value, true
}

// StaticProvider resolves secrets from a fixed map, for tests
type StaticProvider map[string]string

// Secret looks the name up in the map
func (p StaticProvider) Secret(name string) (string, bool) {
	value, ok := p[name]
	if value == "" {
		return "", false
	}
	return value, ok
}
