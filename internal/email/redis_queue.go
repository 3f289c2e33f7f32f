package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPopTimeout = time.Second

type redisListClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// RedisQueue guarda trabajos de correo en una lista de Redis. Enqueue hace
// LPUSH y los workers consumen con BRPOP, asi varias instancias comparten la
// misma cola.
type RedisQueue struct {
	deliverer
	client redisListClient
	key    string
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

func NewRedisQueue(client *redis.Client, key string, logger *zap.Logger, sender Sender, observer DeliveryObserver) *RedisQueue {
	if key == "" {
		key = "email:jobs"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{
		deliverer: deliverer{sender: sender, logger: logger, observer: observer},
		client:    client,
		key:       key,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, msg Message, opts DeliveryOptions) error {
	payload, err := json.Marshal(job{Message: msg, Options: opts, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode email job: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Start lanza workers hasta que se llame Close.
func (q *RedisQueue) Start(workers int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return
	}
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.work(ctx)
		}()
	}
}

func (q *RedisQueue) work(ctx context.Context) {
	for ctx.Err() == nil {
		j, ok := q.pop(ctx)
		if !ok {
			continue
		}
		q.deliver(ctx, j)
	}
}

func (q *RedisQueue) pop(ctx context.Context) (job, bool) {
	res, err := q.client.BRPop(ctx, redisPopTimeout, q.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			q.logger.Warn("email queue pop failed", zap.Error(err))
			sleep(ctx, redisPopTimeout)
		}
		return job{}, false
	}
	if len(res) != 2 {
		return job{}, false
	}
	var j job
	if err := json.Unmarshal([]byte(res[1]), &j); err != nil {
		q.logger.Error("discarding malformed email job", zap.Error(err))
		return job{}, false
	}
	return j, true
}

// Close detiene los workers; los trabajos siguen en Redis.
func (q *RedisQueue) Close() {
	q.mu.Lock()
	cancel := q.cancel
	q.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	q.wg.Wait()
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
