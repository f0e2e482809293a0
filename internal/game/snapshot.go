package game

import (
	"encoding/hex"
	"time"
)

// Snapshot — serializable instance state for the persistence layer.
// It carries everything needed to resurrect a live instance after a
// process restart, including the stored credential and derivation nonce.
type Snapshot struct {
	InstanceID  string `json:"instanceId"`
	RoundID     uint64 `json:"roundId"`
	Participant string `json:"participant"`

	Target   string `json:"target"`
	NonceHex string `json:"nonce"`

	Credential string `json:"credential"`

	Attempts []Attempt `json:"attempts"`
	Outcome  string    `json:"outcome"`
	Attested bool      `json:"attested"`

	CreatedAtMs int64 `json:"createdAtMs"`
}

func (i *Instance) snapshotLocked() Snapshot {
	return Snapshot{
		InstanceID:  i.id,
		RoundID:     i.roundID,
		Participant: i.participant,

		Target:   i.target,
		NonceHex: hex.EncodeToString(i.nonce),

		Credential: i.credential,

		Attempts: append([]Attempt(nil), i.attempts...),
		Outcome:  string(i.outcome),
		Attested: i.attested,

		CreatedAtMs: i.createdAt.UnixMilli(),
	}
}

func (i *Instance) restoreLocked(s Snapshot) {
	i.id = s.InstanceID
	i.roundID = s.RoundID
	i.participant = s.Participant

	i.target = s.Target
	if nonce, err := hex.DecodeString(s.NonceHex); err == nil {
		i.nonce = nonce
	}

	i.credential = s.Credential

	i.attempts = append([]Attempt(nil), s.Attempts...)
	i.outcome = Outcome(s.Outcome)
	i.attested = s.Attested

	i.createdAt = time.UnixMilli(s.CreatedAtMs)
}
