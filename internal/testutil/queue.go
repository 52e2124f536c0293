package testutil

import (
	"context"
	"sync"

	"github.com/golf-outing/backend/pkg/queue"
)

// FakeCleanupQueue records logo cleanup jobs.
type FakeCleanupQueue struct {
	mu   sync.Mutex
	Jobs []queue.LogoCleanupPayload
	Err  error
}

// EnqueueLogoCleanup records payload.
func (q *FakeCleanupQueue) EnqueueLogoCleanup(_ context.Context, payload queue.LogoCleanupPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.Jobs = append(q.Jobs, payload)
	return nil
}

// Enqueued returns a copy of the recorded jobs.
func (q *FakeCleanupQueue) Enqueued() []queue.LogoCleanupPayload {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.LogoCleanupPayload{}, q.Jobs...)
}
