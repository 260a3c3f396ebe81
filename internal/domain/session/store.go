package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/zephyre/internal/domain/skincare"
	"github.com/yanqian/zephyre/internal/domain/weather"
)

// Store persists session state for a bounded time.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (State, bool, error)
	Save(ctx context.Context, state State, ttl time.Duration) error
}

// Locker serializes read-modify-write cycles on a key.
// Lock blocks until the lock is held or ctx is done; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// PlanGenerator produces a recommendation plan. *skincare.Engine satisfies it.
type PlanGenerator interface {
	GeneratePlan(skinType string, obs weather.Observation) skincare.Plan
}

// JobQueue schedules background work.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any) error
}

// Config wires runtime knobs for sessions.
type Config struct {
	TTL         time.Duration
	LockTTL     time.Duration
	LockTimeout time.Duration
	// AsyncCapture returns from Capture once the session is analyzing and classifies in a job.
	AsyncCapture bool
}

// CaptureRequest carries an uploaded still image.
type CaptureRequest struct {
	Image    []byte
	MimeType string
}
