package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"notitrade/internal/exception"
	"notitrade/internal/metrics"
)

const (
	DefaultPollInterval = time.Second
	DefaultRetryDelay   = 30 * time.Second
	DefaultMaxAttempts  = 5

	promoteBatch = 100

	consumerLockTTL = 30 * time.Second
	settleTimeout   = 5 * time.Second
)

// promoteScript moves up to ARGV[2] due members of the delayed set to the ready list.
var promoteScript = redis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, item in ipairs(items) do
	redis.call('ZREM', KEYS[1], item)
	redis.call('RPUSH', KEYS[2], item)
end
return #items
`)

var refreshLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// settle derives a context for bookkeeping writes that must land even after
// the consumer's context is cancelled.
func settle(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

type Options struct {
	Name         string
	PollInterval time.Duration
	RetryDelay   time.Duration
	MaxAttempts  int
}

// RedisQueue is a delayed, at-least-once queue. Messages wait in a sorted set
// until due, move to a ready list, and stay in a processing list until the
// handler acknowledges them.
type RedisQueue struct {
	client *redis.Client
	opts   Options
	now    func() time.Time
	log    logrus.FieldLogger
}

func NewRedisQueue(client *redis.Client, opts Options, log logrus.FieldLogger) *RedisQueue {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	return &RedisQueue{
		client: client,
		opts:   opts,
		now:    time.Now,
		log:    log.WithField("queue", opts.Name),
	}
}

func (q *RedisQueue) delayedKey() string    { return q.opts.Name + ":delayed" }
func (q *RedisQueue) readyKey() string      { return q.opts.Name + ":ready" }
func (q *RedisQueue) processingKey() string { return q.opts.Name + ":processing" }
func (q *RedisQueue) deadKey() string       { return q.opts.Name + ":dead" }
func (q *RedisQueue) lockKey() string       { return q.opts.Name + ":consumer" }

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Enqueue stores body for delivery no earlier than delay from now.
func (q *RedisQueue) Enqueue(ctx context.Context, body []byte, delay time.Duration) (string, error) {
	if !json.Valid(body) {
		return "", errors.Wrap(exception.ErrInvalidDelivery, "body is not valid JSON")
	}

	now := q.now()
	d := Delivery{
		ID:         uuid.NewString(),
		Body:       body,
		EnqueuedAt: now.UTC(),
	}
	if err := q.schedule(ctx, q.client, d, now.Add(delay)); err != nil {
		return "", err
	}

	q.log.WithFields(logrus.Fields{"id": d.ID, "delay": delay}).Debug("message enqueued")
	return d.ID, nil
}

func (q *RedisQueue) schedule(ctx context.Context, c redis.Cmdable, d Delivery, due time.Time) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "failed to marshal delivery")
	}
	if err := c.ZAdd(ctx, q.delayedKey(), redis.Z{Score: score(due), Member: string(raw)}).Err(); err != nil {
		return errors.Wrap(err, "failed to schedule delivery")
	}
	return nil
}

// Consume delivers messages to handler until ctx is done. Only one consumer
// runs per queue name: Consume waits for the queue's consumer lock, then
// moves messages left in the processing list by a previous run back to
// ready before delivering. It returns ErrQueueLockLost if the lock is taken
// over while consuming.
func (q *RedisQueue) Consume(ctx context.Context, handler Handler) error {
	token := uuid.NewString()
	if err := q.lock(ctx, token); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer q.unlock(ctx, token)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lost := make(chan struct{})
	go q.holdLock(ctx, cancel, token, lost)

	err := q.consume(ctx, handler)
	select {
	case <-lost:
		return errors.Wrap(exception.ErrQueueLockLost, q.opts.Name)
	default:
		return err
	}
}

func (q *RedisQueue) consume(ctx context.Context, handler Handler) error {
	if err := q.Recover(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := q.ProcessDue(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.log.WithError(err).Error("failed to process queue")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (q *RedisQueue) lock(ctx context.Context, token string) error {
	var waiting bool
	for {
		ok, err := q.client.SetNX(ctx, q.lockKey(), token, consumerLockTTL).Result()
		if err != nil {
			return errors.Wrap(err, "failed to take consumer lock")
		}
		if ok {
			return nil
		}
		if !waiting {
			q.log.Warn("another consumer holds the queue, waiting for its lock")
			waiting = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(q.opts.PollInterval):
		}
	}
}

func (q *RedisQueue) holdLock(ctx context.Context, cancel context.CancelFunc, token string, lost chan<- struct{}) {
	ticker := time.NewTicker(consumerLockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		held, err := refreshLockScript.Run(ctx, q.client, []string{q.lockKey()}, token, consumerLockTTL.Milliseconds()).Int()
		if err != nil {
			if ctx.Err() == nil {
				q.log.WithError(err).Warn("failed to refresh consumer lock")
			}
			continue
		}
		if held == 0 {
			q.log.Error("consumer lock lost, stopping")
			close(lost)
			cancel()
			return
		}
	}
}

func (q *RedisQueue) unlock(ctx context.Context, token string) {
	ctx, cancel := settle(ctx)
	defer cancel()
	if err := releaseLockScript.Run(ctx, q.client, []string{q.lockKey()}, token).Err(); err != nil {
		q.log.WithError(err).Warn("failed to release consumer lock")
	}
}

// Recover moves every in-flight message back to the ready list.
func (q *RedisQueue) Recover(ctx context.Context) error {
	var moved int
	for {
		err := q.client.LMove(ctx, q.processingKey(), q.readyKey(), "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return errors.Wrap(err, "failed to recover in-flight messages")
		}
		moved++
	}
	if moved > 0 {
		q.log.WithField("count", moved).Warn("recovered in-flight messages")
	}
	return nil
}

// ProcessDue promotes due messages and hands every ready message to handler.
// It returns the number of deliveries made.
func (q *RedisQueue) ProcessDue(ctx context.Context, handler Handler) (int, error) {
	keys := []string{q.delayedKey(), q.readyKey()}
	if err := promoteScript.Run(ctx, q.client, keys, strconv.FormatInt(q.now().UnixMilli(), 10), promoteBatch).Err(); err != nil {
		return 0, errors.Wrap(err, "failed to promote due messages")
	}

	var delivered int
	for ctx.Err() == nil {
		raw, err := q.client.LMove(ctx, q.readyKey(), q.processingKey(), "LEFT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			return delivered, nil
		}
		if err != nil {
			return delivered, errors.Wrap(err, "failed to take ready message")
		}

		delivered++
		if err := q.deliver(ctx, raw, handler); err != nil {
			return delivered, err
		}
	}
	return delivered, ctx.Err()
}

func (q *RedisQueue) deliver(ctx context.Context, raw string, handler Handler) error {
	var d Delivery
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		q.log.WithError(err).WithField("raw", raw).Error("undecodable delivery moved to dead letter")
		q.observe("dead")
		ctx, cancel := settle(ctx)
		defer cancel()
		return q.bury(ctx, raw)
	}

	log := q.log.WithFields(logrus.Fields{"id": d.ID, "attempt": d.Attempt})

	handleErr := handler(ctx, d)

	// the outcome is recorded even when the handler ran into a shutdown
	ctx, cancel := settle(ctx)
	defer cancel()

	if handleErr == nil {
		q.observe("acked")
		return q.ack(ctx, raw)
	}

	d.Attempt++
	if d.Attempt >= q.opts.MaxAttempts {
		log.WithError(handleErr).WithField("body", string(d.Body)).Error("delivery exhausted, moved to dead letter")
		q.observe("dead")
		return q.bury(ctx, raw)
	}

	due := q.now().Add(q.opts.RetryDelay * time.Duration(d.Attempt))
	log.WithError(handleErr).WithField("retry_at", due).Warn("delivery failed, scheduled for redelivery")
	q.observe("retried")

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, raw)
		return q.schedule(ctx, pipe, d, due)
	})
	return errors.Wrap(err, "failed to reschedule delivery")
}

func (q *RedisQueue) ack(ctx context.Context, raw string) error {
	return errors.Wrap(q.client.LRem(ctx, q.processingKey(), 1, raw).Err(), "failed to ack delivery")
}

func (q *RedisQueue) bury(ctx context.Context, raw string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, raw)
		pipe.RPush(ctx, q.deadKey(), raw)
		return nil
	})
	return errors.Wrap(err, "failed to move delivery to dead letter")
}

func (q *RedisQueue) observe(outcome string) {
	metrics.DeliveriesTotal.WithLabelValues(q.opts.Name, outcome).Inc()
}
