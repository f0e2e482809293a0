// Package signer produces the attestation the settlement layer verifies by
// signature recovery. The signature is domain-separated: it commits to a
// schema tag, the signer's own address, the round, the winner and the
// attempt count, so it cannot be replayed against another contract, round
// or participant.
package signer

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// domainTag versions the attestation schema. Changing the digest layout
// requires a new tag.
const domainTag = "WORDMINT_ATTEST_V1"

var errBadKey = errors.New("signer: key must be 32 bytes of hex")

// Attestation is the signed statement authorizing a payout.
type Attestation struct {
	RoundID     uint64
	Participant string
	Attempts    int
	Payout      *big.Int // nil when no fixed payout is configured
	Signature   string   // 0x-prefixed 65-byte r||s||v
}

// Signer holds the long-lived secp256k1 signing key. It is stateless and
// side-effect-free; at-most-once issuance is enforced by the session store,
// never here.
type Signer struct {
	priv    *secp256k1.PrivateKey
	address string
}

func New(keyHex string) (*Signer, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(keyHex, "0x"))
	if err != nil || len(raw) != 32 {
		return nil, errBadKey
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, errBadKey
	}

	return &Signer{
		priv:    priv,
		address: pubKeyAddress(priv.PubKey()),
	}, nil
}

// Address returns the signer's public identity, the counterpart the
// settlement layer recovers from each signature.
func (s *Signer) Address() string { return s.address }

// Sign attests that participant won roundID in attempts guesses. The caller
// must already hold a successful claimed-flag transition for the instance.
func (s *Signer) Sign(roundID uint64, participant string, attempts int, payout *big.Int) (Attestation, error) {
	digest, err := s.Digest(roundID, participant, attempts, payout)
	if err != nil {
		return Attestation{}, fmt.Errorf("signer: %w", err)
	}

	// SignCompact yields [v || r || s] with v = 27+recid; the settlement
	// layer expects the Ethereum layout r||s||v.
	compact := secpecdsa.SignCompact(s.priv, digest, false)
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]

	return Attestation{
		RoundID:     roundID,
		Participant: participant,
		Attempts:    attempts,
		Payout:      payout,
		Signature:   "0x" + hex.EncodeToString(sig),
	}, nil
}

// Digest is exported for verification in tests and tooling; it must stay in
// lockstep with the settlement contract's schema.
func (s *Signer) Digest(roundID uint64, participant string, attempts int, payout *big.Int) ([]byte, error) {
	addr, err := decodeAddress(participant)
	if err != nil {
		return nil, err
	}
	self, err := decodeAddress(s.address)
	if err != nil {
		return nil, err
	}

	var rid, cnt [8]byte
	binary.BigEndian.PutUint64(rid[:], roundID)
	binary.BigEndian.PutUint64(cnt[:], uint64(attempts))

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(domainTag))
	h.Write(self)
	h.Write(rid[:])
	h.Write(addr)
	h.Write(cnt[:])
	if payout != nil {
		var p [32]byte
		payout.FillBytes(p[:])
		h.Write(p[:])
	}
	return h.Sum(nil), nil
}

func pubKeyAddress(pub *secp256k1.PublicKey) string {
	raw := pub.SerializeUncompressed()
	h := sha3.NewLegacyKeccak256()
	h.Write(raw[1:]) // drop the 0x04 prefix
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[12:])
}

func decodeAddress(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("bad address %q", s)
	}
	if len(raw) != 20 {
		return nil, fmt.Errorf("bad address length %d", len(raw))
	}
	return raw, nil
}
