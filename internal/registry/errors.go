package registry

import "errors"

var (
	// ErrConfigConflict signals a registration whose unique key is already taken
	ErrConfigConflict = errors.New("monitor already registered for this configuration")
	// ErrMonitorNotFound signals an operation on an unknown unique key
	ErrMonitorNotFound = errors.New("monitor not found")
	// ErrRegistryClosed signals an operation after shutdown began
	ErrRegistryClosed = errors.New("registry closed")
)
