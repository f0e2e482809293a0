package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	InstanceTTL time.Duration
}

// CredentialIssuer mints the opaque bearer credential bound to a new
// instance. Implemented by internal/auth.
type CredentialIssuer interface {
	Issue(instanceID string) (string, error)
}

type roundKey struct {
	roundID     uint64
	participant string
}

// Service owns the lifecycle of in-flight instances:
// - authoritative in-memory map, per-instance locking for mutation
// - idempotent creation per (roundID, participant)
// - optional snapshot persistence (Redis) for restart recovery
// - TTL-based eviction via SweepExpired
type Service struct {
	mu      sync.Mutex
	byID    map[string]*Instance
	byRound map[roundKey]string

	cfg     Config
	deriver *Deriver
	creds   CredentialIssuer
	persist Persistence // nil => memory only
	log     *slog.Logger
}

func NewService(cfg Config, deriver *Deriver, creds CredentialIssuer, persist Persistence, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		byID:    make(map[string]*Instance),
		byRound: make(map[roundKey]string),
		cfg:     cfg,
		deriver: deriver,
		creds:   creds,
		persist: persist,
		log:     log,
	}
}

// Create returns the instance for (roundID, participant), allocating one if
// none is live. Repeat calls return the existing instance with its original
// credential unchanged; the target is derived exactly once.
func (s *Service) Create(ctx context.Context, roundID uint64, participant string) (*Instance, bool, error) {
	key := roundKey{roundID: roundID, participant: participant}

	s.mu.Lock()
	if id, ok := s.byRound[key]; ok {
		if inst, ok := s.byID[id]; ok {
			s.mu.Unlock()
			return inst, false, nil
		}
	}
	s.mu.Unlock()

	// A prior process may hold a live instance for this round.
	if s.persist != nil {
		snap, found, err := s.persist.LoadByRound(ctx, roundID, participant)
		if err != nil {
			return nil, false, fmt.Errorf("load by round: %w", err)
		}
		if found && !s.expired(snap) {
			return s.adopt(snap), false, nil
		}
	}

	nonce, err := s.deriver.NewNonce()
	if err != nil {
		return nil, false, err
	}

	inst := newInstance(uuid.NewString(), roundID, participant)
	inst.nonce = nonce
	inst.target = s.deriver.Derive(roundID, participant, nonce)

	cred, err := s.creds.Issue(inst.id)
	if err != nil {
		return nil, false, fmt.Errorf("issue credential: %w", err)
	}
	inst.credential = cred
	s.attachPersist(inst)

	s.mu.Lock()
	// Re-check: a concurrent create for the same key may have won the race.
	if id, ok := s.byRound[key]; ok {
		if existing, ok := s.byID[id]; ok {
			s.mu.Unlock()
			return existing, false, nil
		}
	}
	s.byID[inst.id] = inst
	s.byRound[key] = inst.id
	s.mu.Unlock()

	inst.mu.Lock()
	inst.persistLocked()
	inst.mu.Unlock()

	return inst, true, nil
}

// GetOrLoad looks an instance up in memory, falling back to the snapshot
// store when configured.
func (s *Service) GetOrLoad(ctx context.Context, instanceID string) (*Instance, bool, error) {
	s.mu.Lock()
	inst, ok := s.byID[instanceID]
	s.mu.Unlock()
	if ok {
		return inst, true, nil
	}

	if s.persist == nil {
		return nil, false, nil
	}

	snap, found, err := s.persist.Load(ctx, instanceID)
	if err != nil || !found {
		return nil, false, err
	}
	if s.expired(snap) {
		return nil, false, nil
	}
	return s.adopt(snap), true, nil
}

// adopt restores a snapshot into the in-memory map, deduplicating against a
// concurrent restore of the same instance.
func (s *Service) adopt(snap Snapshot) *Instance {
	inst := newInstance(snap.InstanceID, snap.RoundID, snap.Participant)
	inst.mu.Lock()
	inst.restoreLocked(snap)
	inst.mu.Unlock()
	s.attachPersist(inst)

	key := roundKey{roundID: inst.roundID, participant: inst.participant}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byID[inst.id]; ok {
		return existing
	}
	s.byID[inst.id] = inst
	s.byRound[key] = inst.id
	return inst
}

func (s *Service) attachPersist(inst *Instance) {
	if s.persist == nil {
		return
	}
	inst.onPersist = func(snap Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.persist.Save(ctx, snap); err != nil {
			s.log.Warn("instance snapshot save failed", "instanceId", snap.InstanceID, "err", err)
		}
	}
}

func (s *Service) expired(snap Snapshot) bool {
	created := time.UnixMilli(snap.CreatedAtMs)
	return time.Since(created) > s.cfg.InstanceTTL
}

// SweepExpired evicts every instance whose age exceeds the TTL, regardless
// of outcome. Removal from the maps happens first so no new lookup can see
// an evicted instance; the per-instance lock is then taken for teardown so
// the sweep never interleaves with an in-flight mutation.
func (s *Service) SweepExpired(ctx context.Context) int {
	cutoff := time.Now().Add(-s.cfg.InstanceTTL)

	s.mu.Lock()
	var expired []*Instance
	for id, inst := range s.byID {
		inst.mu.Lock()
		old := inst.createdAt.Before(cutoff)
		inst.mu.Unlock()
		if old {
			delete(s.byID, id)
			delete(s.byRound, roundKey{roundID: inst.roundID, participant: inst.participant})
			expired = append(expired, inst)
		}
	}
	s.mu.Unlock()

	for _, inst := range expired {
		inst.mu.Lock()
		inst.closeWatchersLocked()
		snap := inst.snapshotLocked()
		inst.onPersist = nil
		inst.mu.Unlock()

		if s.persist != nil {
			if err := s.persist.Delete(ctx, snap); err != nil {
				s.log.Warn("instance snapshot delete failed", "instanceId", snap.InstanceID, "err", err)
			}
		}
		s.log.Info("instance evicted", "instanceId", inst.id, "roundId", inst.roundID, "outcome", snap.Outcome)
	}
	return len(expired)
}
