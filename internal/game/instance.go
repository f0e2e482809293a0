package game

import (
	"errors"
	"sync"
	"time"

	"example.com/wordmint/internal/wordlist"
)

// MaxAttempts is the fixed attempt budget per instance.
const MaxAttempts = 6

type Outcome string

const (
	OutcomeInProgress Outcome = "in_progress"
	OutcomeWon        Outcome = "won"
	OutcomeLost       Outcome = "lost"
)

var (
	ErrNotFound       = errors.New("instance not found")
	ErrBadGuess       = errors.New("guess must be exactly 5 letters A-Z")
	ErrGameOver       = errors.New("game already finished")
	ErrNotWon         = errors.New("instance is not won")
	ErrAlreadyClaimed = errors.New("attestation already issued")
)

// Attempt is one evaluated guess, append-only.
type Attempt struct {
	Guess   string    `json:"guess"`
	Verdict []Verdict `json:"verdict"`
	At      time.Time `json:"at"`
}

// Instance is one play-through bound to a (round, participant) pair.
// All mutation goes through methods that hold mu, so concurrent guesses,
// an attestation request racing a guess, and the eviction sweep serialize
// against each other.
type Instance struct {
	mu sync.Mutex

	id          string
	roundID     uint64
	participant string

	target string
	nonce  []byte // derivation nonce, fixed at creation

	credential string // bearer token minted at creation, compared server-side

	attempts  []Attempt
	outcome   Outcome
	attested  bool
	createdAt time.Time

	watchers  map[*ClientConn]struct{}
	onPersist func(Snapshot)
}

func newInstance(id string, roundID uint64, participant string) *Instance {
	return &Instance{
		id:          id,
		roundID:     roundID,
		participant: participant,
		outcome:     OutcomeInProgress,
		createdAt:   time.Now(),
		watchers:    make(map[*ClientConn]struct{}),
	}
}

func (i *Instance) ID() string          { return i.id }
func (i *Instance) RoundID() uint64     { return i.roundID }
func (i *Instance) Participant() string { return i.participant }

// Credential returns the stored bearer token for constant-time comparison.
func (i *Instance) Credential() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.credential
}

func (i *Instance) CreatedAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.createdAt
}

// GuessResult is the outcome of one accepted guess.
type GuessResult struct {
	Verdict       []Verdict
	AttemptNumber int
	Terminal      bool
	Won           bool
	Target        string // set only when Terminal
}

// SubmitGuess appends an evaluated attempt and re-checks termination:
// won on an exact match, lost when the attempt budget is exhausted.
// Rejected without mutation once the instance is terminal.
func (i *Instance) SubmitGuess(guess string) (GuessResult, error) {
	if !wordlist.Valid(guess) {
		return GuessResult{}, ErrBadGuess
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.outcome != OutcomeInProgress {
		return GuessResult{}, ErrGameOver
	}

	verdict := Evaluate(guess, i.target)
	i.attempts = append(i.attempts, Attempt{
		Guess:   guess,
		Verdict: verdict,
		At:      time.Now(),
	})

	switch {
	case guess == i.target:
		i.outcome = OutcomeWon
	case len(i.attempts) >= MaxAttempts:
		i.outcome = OutcomeLost
	}

	res := GuessResult{
		Verdict:       verdict,
		AttemptNumber: len(i.attempts),
		Terminal:      i.outcome != OutcomeInProgress,
		Won:           i.outcome == OutcomeWon,
	}
	if res.Terminal {
		res.Target = i.target
	}

	i.broadcastStateLocked()
	i.persistLocked()
	return res, nil
}

// Claim transitions attested false->true exactly once. It is the only
// at-most-once gate in the attestation path: the signer runs only after
// Claim returns nil, and Claim never returns nil twice for one instance.
func (i *Instance) Claim() (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.outcome != OutcomeWon {
		return 0, ErrNotWon
	}
	if i.attested {
		return 0, ErrAlreadyClaimed
	}
	i.attested = true

	i.broadcastStateLocked()
	i.persistLocked()
	return len(i.attempts), nil
}

// State returns a copy of the externally observable instance state.
// The target is included only once the instance is terminal.
func (i *Instance) State() StatePayload {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.buildStateLocked()
}

func (i *Instance) buildStateLocked() StatePayload {
	st := StatePayload{
		InstanceID:   i.id,
		RoundID:      i.roundID,
		Participant:  i.participant,
		Outcome:      string(i.outcome),
		AttemptCount: len(i.attempts),
		MaxAttempts:  MaxAttempts,
		WordLength:   wordlist.WordLength,
		Attempts:     append([]Attempt(nil), i.attempts...),
		Attested:     i.attested,
	}
	if i.outcome != OutcomeInProgress {
		st.Target = i.target
	}
	return st
}

func (i *Instance) persistLocked() {
	if i.onPersist == nil {
		return
	}
	i.onPersist(i.snapshotLocked())
}
