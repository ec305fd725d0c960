package monitor

import (
	"context"
	"time"

	"tagwatch/internal/models"
)

// ReleaseSource fetches the latest known release of an upstream repository
type ReleaseSource interface {
	FetchLatest(ctx context.Context, owner, repo string) (*models.ReleaseRecord, error)
}

// DispatchSender delivers the one-shot notification to a downstream
// repository. tokenSecret is a credential reference, resolved by the sender.
type DispatchSender interface {
	Send(ctx context.Context, owner, repo, tokenSecret string, payload models.DispatchPayload) error
}

// AlarmScheduler registers one-shot wake-ups per key. Arm replaces any
// pending wake-up for the same key; Cancel is a no-op when none is pending.
type AlarmScheduler interface {
	Arm(key string, at time.Time, fn func())
	Cancel(key string)
}

// StateStore is the per-key durable state slot. One Put must be one atomic
// write; the monitor is the single writer for its own key.
type StateStore interface {
	Put(record *models.MonitorRecord) error
	Delete(uniqueKey string) error
}
