package models

import (
	"fmt"
	"time"
)

// ComparisonMode selects which release timestamp is used for "newer than" comparisons
type ComparisonMode string

const (
	// ComparisonModePublishedAt compares releases by their publish time
	ComparisonModePublishedAt ComparisonMode = "published_at"
	// ComparisonModeUpdatedAt compares releases by their last-update time
	ComparisonModeUpdatedAt ComparisonMode = "updated_at"
)

// ParseComparisonMode converts a string into a ComparisonMode, defaulting to published_at for empty input
func ParseComparisonMode(s string) (ComparisonMode, error) {
	switch s {
	case "":
		return ComparisonModePublishedAt, nil
	case string(ComparisonModePublishedAt):
		return ComparisonModePublishedAt, nil
	case string(ComparisonModeUpdatedAt):
		return ComparisonModeUpdatedAt, nil
	default:
		return "", fmt.Errorf("invalid comparison mode: %q", s)
	}
}

// IsValid reports whether the mode is one of the known values
func (m ComparisonMode) IsValid() bool {
	return m == ComparisonModePublishedAt || m == ComparisonModeUpdatedAt
}

// ReleaseRecord describes the latest known release of an upstream repository
type ReleaseRecord struct {
	TagName     string    `json:"tag_name"`
	PublishedAt time.Time `json:"published_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Timestamp returns the field selected by the comparison mode
func (r *ReleaseRecord) Timestamp(mode ComparisonMode) time.Time {
	if mode == ComparisonModeUpdatedAt {
		return r.UpdatedAt
	}
	return r.PublishedAt
}

// NewerThan reports whether r is strictly newer than current under the given mode.
// A nil current is the null baseline: any fetched release counts as newer.
// Equal timestamps are not newer, which keeps delivered releases idempotent.
func (r *ReleaseRecord) NewerThan(current *ReleaseRecord, mode ComparisonMode) bool {
	if current == nil {
		return true
	}
	return r.Timestamp(mode).After(current.Timestamp(mode))
}
