package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrResultNotFound = errors.New("result not found")

// GameResult is the audit row for a terminal instance. The in-memory
// service stays authoritative for live games; this table exists so operators
// can reconcile issued attestations against the settlement layer.
type GameResult struct {
	InstanceID  string
	RoundID     uint64
	Participant string
	Won         bool
	Attempts    int
	Target      string
	Attested    bool
	Signature   string
	FinishedAt  time.Time
}

type ResultsStore struct {
	db *pgxpool.Pool
}

func NewResultsStore(db *pgxpool.Pool) *ResultsStore {
	return &ResultsStore{db: db}
}

func (s *ResultsStore) RecordResult(ctx context.Context, r GameResult) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO game_results (instance_id, round_id, participant, won, attempts, target, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instance_id) DO NOTHING
	`, r.InstanceID, int64(r.RoundID), r.Participant, r.Won, r.Attempts, r.Target, r.FinishedAt)
	return err
}

func (s *ResultsStore) MarkAttested(ctx context.Context, instanceID, signature string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE game_results
		SET attested = TRUE, signature = $2
		WHERE instance_id = $1
	`, instanceID, signature)
	return err
}

func (s *ResultsStore) Get(ctx context.Context, instanceID string) (GameResult, error) {
	var r GameResult
	var roundID int64
	var sig *string
	err := s.db.QueryRow(ctx, `
		SELECT instance_id, round_id, participant, won, attempts, target, attested, signature, finished_at
		FROM game_results
		WHERE instance_id = $1
	`, instanceID).Scan(&r.InstanceID, &roundID, &r.Participant, &r.Won, &r.Attempts, &r.Target, &r.Attested, &sig, &r.FinishedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return GameResult{}, ErrResultNotFound
	}
	if err != nil {
		return GameResult{}, err
	}
	r.RoundID = uint64(roundID)
	if sig != nil {
		r.Signature = *sig
	}
	return r, nil
}
