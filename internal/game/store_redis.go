package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Persistence — abstraction over "put/fetch a snapshot". Redis implements
// it today; the in-memory service stays authoritative and treats this as
// best-effort recovery state, not a durability guarantee.
type Persistence interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, instanceID string) (Snapshot, bool, error)
	LoadByRound(ctx context.Context, roundID uint64, participant string) (Snapshot, bool, error)
	Delete(ctx context.Context, snap Snapshot) error
}

type RedisInstanceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisInstanceStore(rdb *redis.Client, ttl time.Duration) *RedisInstanceStore {
	return &RedisInstanceStore{rdb: rdb, ttl: ttl}
}

func (s *RedisInstanceStore) key(instanceID string) string {
	return fmt.Sprintf("instance:%s:snapshot", instanceID)
}

// roundKey indexes (roundID, participant) -> instanceID so idempotent
// creation survives a restart.
func (s *RedisInstanceStore) roundKey(roundID uint64, participant string) string {
	return fmt.Sprintf("round:%d:%s:instance", roundID, participant)
}

func (s *RedisInstanceStore) Save(ctx context.Context, snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(snap.InstanceID), b, s.ttl).Err(); err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.roundKey(snap.RoundID, snap.Participant), snap.InstanceID, s.ttl).Err()
}

func (s *RedisInstanceStore) Load(ctx context.Context, instanceID string) (Snapshot, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(instanceID)).Bytes()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}

	var snap Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *RedisInstanceStore) LoadByRound(ctx context.Context, roundID uint64, participant string) (Snapshot, bool, error) {
	id, err := s.rdb.Get(ctx, s.roundKey(roundID, participant)).Result()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	return s.Load(ctx, id)
}

func (s *RedisInstanceStore) Delete(ctx context.Context, snap Snapshot) error {
	return s.rdb.Del(ctx,
		s.key(snap.InstanceID),
		s.roundKey(snap.RoundID, snap.Participant),
	).Err()
}
