package email

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryQueue es una cola en proceso con workers sobre un canal con buffer.
// Los trabajos pendientes se pierden si el proceso termina.
type MemoryQueue struct {
	deliverer
	jobs    chan job
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

func NewMemoryQueue(logger *zap.Logger, sender Sender, observer DeliveryObserver, capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryQueue{
		deliverer: deliverer{sender: sender, logger: logger, observer: observer},
		jobs:      make(chan job, capacity),
	}
}

// Enqueue no bloquea: con el buffer lleno devuelve ErrQueueFull.
func (q *MemoryQueue) Enqueue(_ context.Context, msg Message, opts DeliveryOptions) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job{Message: msg, Options: opts, EnqueuedAt: time.Now().UTC()}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start lanza workers que consumen hasta Close.
func (q *MemoryQueue) Start(workers int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for j := range q.jobs {
				q.deliver(ctx, j)
			}
		}()
	}
}

// Close deja de aceptar trabajos, drena los encolados y espera a los workers.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	started := q.started
	q.mu.Unlock()

	if started {
		q.wg.Wait()
		q.cancel()
	}
}
