package monitor

import "errors"

var (
	// ErrCheckInProgress signals a manual trigger while a check cycle is
	// already running. The caller may treat it as already-in-progress rather
	// than a failure.
	ErrCheckInProgress = errors.New("check already in progress")

	// ErrMonitorStopped signals an operation on a stopped monitor
	ErrMonitorStopped = errors.New("monitor stopped")

	// ErrNotSetUp signals an operation on a monitor before Setup
	ErrNotSetUp = errors.New("monitor not set up")
)
