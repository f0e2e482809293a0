package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// nonceLen is the size of the per-instance derivation nonce.
const nonceLen = 16

// Deriver selects a target word for a (round, participant) pair.
//
// The selection is an HMAC-SHA256 over a long-lived server key, so the
// corpus index cannot be predicted or inverted without the key. The nonce
// is generated from crypto/rand at instance creation and stored on the
// instance; derivation runs exactly once per instance, never on replay.
type Deriver struct {
	secret []byte
	words  []string
}

func NewDeriver(secret []byte, words []string) *Deriver {
	return &Deriver{secret: secret, words: words}
}

// NewNonce returns a fresh random derivation nonce.
func (d *Deriver) NewNonce() ([]byte, error) {
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("derive: nonce: %w", err)
	}
	return nonce, nil
}

// Derive computes the target word for (roundID, participant, nonce).
// participant must already be case-normalized by the caller.
func (d *Deriver) Derive(roundID uint64, participant string, nonce []byte) string {
	mac := hmac.New(sha256.New, d.secret)

	var rid [8]byte
	binary.BigEndian.PutUint64(rid[:], roundID)
	mac.Write(rid[:])
	mac.Write([]byte(participant))
	mac.Write(nonce)

	sum := mac.Sum(nil)
	idx := binary.BigEndian.Uint64(sum[:8]) % uint64(len(d.words))
	return d.words[idx]
}
