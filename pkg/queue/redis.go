package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"SuperAlgo/pkg/logger"
)

type RedisQueue struct {
	log       *logger.Logger
	config    Config
	client    redis.UniversalClient
	keyPrefix string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type RedisQueueOption func(*RedisQueue)

func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) { r.keyPrefix = prefix }
}

func NewRedisQueue(log *logger.Logger, cfg Config, client redis.UniversalClient, opts ...RedisQueueOption) *RedisQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	r := &RedisQueue{
		log:       log,
		config:    cfg,
		client:    client,
		keyPrefix: "superalgo:queue",
		jobs:      make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
}

// Start pings redis and launches the workers and the retry mover.
func (r *RedisQueue) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}
	pctx, pcancel := context.WithTimeout(ctx, 5*time.Second)
	defer pcancel()
	if err := r.client.Ping(pctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.running = true
	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(wctx, i)
	}
	r.wg.Add(1)
	go r.retryLoop(wctx)
	r.log.Info("redis queue started", logger.Int("workers", r.config.Workers), logger.String("prefix", r.keyPrefix))
	return nil
}

// Stop cancels the workers and waits for them, bounded by ctx.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	case <-done:
		r.log.Info("redis queue stopped")
		return nil
	}
}

func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	_, known := r.jobs[msgType]
	r.mu.RUnlock()
	if !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Message{ID: uuid.NewString(), Type: msgType, Payload: raw, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	for ctx.Err() == nil {
		res, err := r.client.BRPop(ctx, time.Second, r.queueKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			r.log.Error("brpop error", logger.Int("worker_id", id), logger.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.log.Error("unmarshal message", logger.Error(err))
			continue
		}
		r.process(ctx, msg)
	}
}

func (r *RedisQueue) process(ctx context.Context, msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		return
	}
	err := job.Handle(ctx, msg.Payload)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	r.log.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))
	if msg.Attempts >= r.config.RetryLimit {
		r.push(r.deadLetterKey(), msg)
		return
	}
	msg.Attempts++
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	due := float64(time.Now().Add(r.config.RetryDelay).Unix())
	if err := r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{Score: due, Member: data}).Err(); err != nil {
		r.log.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) push(key string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := r.client.LPush(context.Background(), key, data).Err(); err != nil {
		r.log.Error("lpush "+key, logger.Error(err))
	}
}

func (r *RedisQueue) retryLoop(ctx context.Context) {
	defer r.wg.Done()
	t := time.NewTicker(r.config.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.moveDue(ctx)
		}
	}
}

func (r *RedisQueue) moveDue(ctx context.Context) {
	until := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := r.client.ZRangeByScore(ctx, r.retryKey(), &redis.ZRangeBy{Min: "0", Max: until}).Result()
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("fetch retry messages", logger.Error(err))
		}
		return
	}
	for _, m := range due {
		pipe := r.client.TxPipeline()
		pipe.ZRem(ctx, r.retryKey(), m)
		pipe.LPush(ctx, r.queueKey(), m)
		if _, err := pipe.Exec(ctx); err != nil {
			if ctx.Err() == nil {
				r.log.Error("move retry to queue", logger.Error(err))
			}
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (r *RedisQueue) queueKey() string      { return r.keyPrefix + ":messages" }
func (r *RedisQueue) retryKey() string      { return r.keyPrefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.keyPrefix + ":dlq" }
