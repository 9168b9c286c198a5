package queue

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultClaimLease = time.Minute
	DefaultClaimTTL   = time.Hour

	claimPending = "pending"
	claimDone    = "done"
)

// ClaimState is the outcome of a claim attempt.
type ClaimState int

const (
	// ClaimAcquired means the caller now holds the key.
	ClaimAcquired ClaimState = iota
	// ClaimPending means another delivery holds the key and has not finished.
	ClaimPending
	// ClaimDone means the key was already acted on.
	ClaimDone
)

// ClaimStore records keys that have already been acted on, so a duplicate
// delivery can be recognised. A claim is pending for lease until Complete
// marks it done for ttl; a pending claim whose holder died simply expires.
type ClaimStore struct {
	client *redis.Client
	prefix string
	lease  time.Duration
	ttl    time.Duration
}

func NewClaimStore(client *redis.Client, name string, lease, ttl time.Duration) *ClaimStore {
	if lease <= 0 {
		lease = DefaultClaimLease
	}
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &ClaimStore{
		client: client,
		prefix: name + ":claim:",
		lease:  lease,
		ttl:    ttl,
	}
}

func (s *ClaimStore) Claim(ctx context.Context, key string) (ClaimState, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, claimPending, s.lease).Result()
	if err != nil {
		return ClaimPending, errors.Wrap(err, "failed to claim key")
	}
	if ok {
		return ClaimAcquired, nil
	}

	state, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; the next delivery will take it
		return ClaimPending, nil
	}
	if err != nil {
		return ClaimPending, errors.Wrap(err, "failed to read claim")
	}
	if state == claimDone {
		return ClaimDone, nil
	}
	return ClaimPending, nil
}

// Complete marks key as acted on for the ttl.
func (s *ClaimStore) Complete(ctx context.Context, key string) error {
	return errors.Wrap(s.client.Set(ctx, s.prefix+key, claimDone, s.ttl).Err(), "failed to complete claim")
}

// Release frees key so a later delivery may act on it again.
func (s *ClaimStore) Release(ctx context.Context, key string) error {
	return errors.Wrap(s.client.Del(ctx, s.prefix+key).Err(), "failed to release key")
}
