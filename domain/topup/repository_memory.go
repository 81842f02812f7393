package topup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]PendingTopUp
	now   func() time.Time

	ctx       context.Context
	cancelCtx context.CancelFunc
}

// NewMemoryRepository returns a process-local store. When sweepEvery is
// positive a janitor goroutine evicts expired records until Close is called.
func NewMemoryRepository(sweepEvery time.Duration) *MemoryRepository {
	ctx, cancelCtx := context.WithCancel(context.Background())
	r := &MemoryRepository{
		items:     make(map[string]PendingTopUp),
		now:       time.Now,
		ctx:       ctx,
		cancelCtx: cancelCtx,
	}

	if sweepEvery > 0 {
		go func() {
			ticker := time.NewTicker(sweepEvery)
			defer ticker.Stop()
			for {
				select {
				case <-r.ctx.Done():
					return
				case <-ticker.C:
					if n := r.Sweep(); n > 0 {
						log.Debugw("evicted expired top-ups", "count", n)
					}
				}
			}
		}()
	}
	return r
}

func (r *MemoryRepository) Get(_ context.Context, correlationID string) (PendingTopUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[correlationID]
	if !ok || item.Expired(r.now()) {
		return PendingTopUp{}, fmt.Errorf("%w: %s", ErrNotFound, correlationID)
	}
	return item, nil
}

func (r *MemoryRepository) Create(_ context.Context, topUp PendingTopUp) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item, ok := r.items[topUp.CorrelationID]; ok && !item.Expired(r.now()) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, topUp.CorrelationID)
	}
	r.items[topUp.CorrelationID] = topUp
	return nil
}

func (r *MemoryRepository) CompareAndSwap(_ context.Context, correlationID string, expected Status, next PendingTopUp) error {
	if err := checkTransition(expected, next); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[correlationID]
	if !ok || item.Expired(r.now()) {
		return fmt.Errorf("%w: %s", ErrNotFound, correlationID)
	}
	if item.Status != expected {
		return fmt.Errorf("%w: %s is %s, expected %s", ErrStatusConflict, correlationID, item.Status, expected)
	}
	r.items[correlationID] = next
	return nil
}

// Sweep drops expired records and returns how many were removed.
func (r *MemoryRepository) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, item := range r.items {
		if item.Expired(now) {
			delete(r.items, id)
			removed++
		}
	}
	return removed
}

func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *MemoryRepository) Close() {
	r.cancelCtx()
}
