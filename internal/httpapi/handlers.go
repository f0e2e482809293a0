package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"example.com/wordmint/internal/auth"
	"example.com/wordmint/internal/game"
	"example.com/wordmint/internal/signer"
	"example.com/wordmint/internal/store"
	"example.com/wordmint/internal/wordlist"
)

// SettlementChecker is the read-only "already consumed" query against the
// settlement layer.
type SettlementChecker interface {
	Claimed(ctx context.Context, roundID uint64) (bool, error)
}

// Handler wires the resolution protocol: admission -> authentication ->
// session store -> evaluator / signer.
type Handler struct {
	Games  *game.Service
	Auth   *auth.Service
	Signer *signer.Signer
	Log    *slog.Logger

	Settlement       SettlementChecker // nil => pre-check skipped
	SettlementStrict bool              // fail closed when the pre-check errors

	Results *store.ResultsStore // nil => audit disabled
	Payout  *big.Int            // nil => no fixed payout in attestations
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/game", h.handleCreate)
	mux.HandleFunc("/api/game/guess", h.handleGuess)
	mux.HandleFunc("/api/game/state", h.handleState)
	mux.HandleFunc("/api/game/attestation", h.handleAttestation)
	mux.HandleFunc("/api/signer", h.handleSigner)
	mux.HandleFunc("/ws", h.handleWS)
}

type CreateRequest struct {
	RoundID     uint64 `json:"roundId"`
	Participant string `json:"participant"`
}

type CreateResponse struct {
	InstanceID  string `json:"instanceId"`
	Credential  string `json:"credential"`
	WordLength  int    `json:"wordLength"`
	MaxAttempts int    `json:"maxAttempts"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	participant, ok := normalizeParticipant(req.Participant)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "participant must be a 0x-prefixed 20-byte hex address")
		return
	}
	if req.RoundID == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "roundId is required")
		return
	}

	inst, created, err := h.Games.Create(r.Context(), req.RoundID, participant)
	if err != nil {
		h.Log.Error("create instance failed", "roundId", req.RoundID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create game")
		return
	}
	if created {
		h.Log.Info("instance created", "instanceId", inst.ID(), "roundId", req.RoundID, "participant", participant)
	}

	writeJSON(w, http.StatusOK, CreateResponse{
		InstanceID:  inst.ID(),
		Credential:  inst.Credential(),
		WordLength:  wordlist.WordLength,
		MaxAttempts: game.MaxAttempts,
	})
}

type GuessRequest struct {
	InstanceID string `json:"instanceId"`
	Guess      string `json:"guess"`
}

type GuessResponse struct {
	Verdict       []game.Verdict `json:"verdict"`
	AttemptNumber int            `json:"attemptNumber"`
	IsTerminal    bool           `json:"isTerminal"`
	Won           bool           `json:"won"`
	Target        string         `json:"target,omitempty"`
}

func (h *Handler) handleGuess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var req GuessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	guess := strings.ToUpper(strings.TrimSpace(req.Guess))
	if !wordlist.Valid(guess) {
		writeError(w, http.StatusBadRequest, "bad_request", "guess must be exactly 5 letters A-Z")
		return
	}

	inst, ok := h.authenticate(r, req.InstanceID)
	if !ok {
		writeUnauthorized(w)
		return
	}

	res, err := inst.SubmitGuess(guess)
	if errors.Is(err, game.ErrGameOver) {
		writeError(w, http.StatusConflict, "game_over", "game already finished")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if res.Terminal {
		h.recordResult(r.Context(), inst, res)
	}

	writeJSON(w, http.StatusOK, GuessResponse{
		Verdict:       res.Verdict,
		AttemptNumber: res.AttemptNumber,
		IsTerminal:    res.Terminal,
		Won:           res.Won,
		Target:        res.Target,
	})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	inst, ok := h.authenticate(r, r.URL.Query().Get("instanceId"))
	if !ok {
		writeUnauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, inst.State())
}

type AttestationRequest struct {
	InstanceID string `json:"instanceId"`
}

type AttestationResponse struct {
	Signature    string `json:"signature"`
	Participant  string `json:"participant"`
	AttemptCount int    `json:"attemptCount"`
	RoundID      uint64 `json:"roundId"`
	Payout       string `json:"payout,omitempty"`
}

func (h *Handler) handleAttestation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var req AttestationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	inst, ok := h.authenticate(r, req.InstanceID)
	if !ok {
		writeUnauthorized(w)
		return
	}

	// Cheap outcome gate first so a not-won instance never triggers an RPC.
	// Claim re-checks under the instance lock, so this is not the authority.
	if game.Outcome(inst.State().Outcome) != game.OutcomeWon {
		writeError(w, http.StatusConflict, "not_won", "instance is not won")
		return
	}

	// Best-effort cross-check with the settlement layer before committing
	// the claimed flag. A definitive "already consumed" always rejects; a
	// transport failure is advisory unless strict mode is configured.
	if h.Settlement != nil {
		claimed, err := h.Settlement.Claimed(r.Context(), inst.RoundID())
		switch {
		case err != nil && h.SettlementStrict:
			h.Log.Error("settlement pre-check failed (strict)", "roundId", inst.RoundID(), "err", err)
			writeError(w, http.StatusServiceUnavailable, "settlement_unavailable", "settlement layer unreachable")
			return
		case err != nil:
			h.Log.Warn("settlement pre-check failed, proceeding", "roundId", inst.RoundID(), "err", err)
		case claimed:
			writeError(w, http.StatusConflict, "already_claimed", "attestation already consumed by settlement layer")
			return
		}
	}

	attempts, err := inst.Claim()
	if errors.Is(err, game.ErrNotWon) {
		writeError(w, http.StatusConflict, "not_won", "instance is not won")
		return
	}
	if errors.Is(err, game.ErrAlreadyClaimed) {
		writeError(w, http.StatusConflict, "already_claimed", "attestation already issued")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "claim failed")
		return
	}

	att, err := h.Signer.Sign(inst.RoundID(), inst.Participant(), attempts, h.Payout)
	if err != nil {
		// The claimed flag stays set: signing only fails on malformed
		// identity data, which is a configuration problem, and re-running
		// the signer for one instance is forbidden by design.
		h.Log.Error("attestation signing failed", "instanceId", inst.ID(), "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "signing failed")
		return
	}

	h.Log.Info("attestation issued",
		"instanceId", inst.ID(),
		"roundId", att.RoundID,
		"participant", att.Participant,
		"attempts", att.Attempts,
	)
	h.markAttested(r.Context(), inst, att)

	resp := AttestationResponse{
		Signature:    att.Signature,
		Participant:  att.Participant,
		AttemptCount: att.Attempts,
		RoundID:      att.RoundID,
	}
	if att.Payout != nil {
		resp.Payout = att.Payout.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSigner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": h.Signer.Address()})
}

// authenticate resolves the instance and verifies the bearer credential.
// Unknown instance and wrong credential are indistinguishable to the
// caller; the credential comparison runs either way.
func (h *Handler) authenticate(r *http.Request, instanceID string) (*game.Instance, bool) {
	token := bearerToken(r)

	inst, found, err := h.Games.GetOrLoad(r.Context(), instanceID)
	if err != nil {
		h.Log.Warn("instance lookup failed", "instanceId", instanceID, "err", err)
	}

	stored := ""
	if found {
		stored = inst.Credential()
	}
	if !h.Auth.Verify(token, stored) || !found {
		return nil, false
	}
	return inst, true
}

func (h *Handler) recordResult(ctx context.Context, inst *game.Instance, res game.GuessResult) {
	if h.Results == nil {
		return
	}
	err := h.Results.RecordResult(ctx, store.GameResult{
		InstanceID:  inst.ID(),
		RoundID:     inst.RoundID(),
		Participant: inst.Participant(),
		Won:         res.Won,
		Attempts:    res.AttemptNumber,
		Target:      res.Target,
		FinishedAt:  time.Now(),
	})
	if err != nil {
		h.Log.Warn("audit record failed", "instanceId", inst.ID(), "err", err)
	}
}

func (h *Handler) markAttested(ctx context.Context, inst *game.Instance, att signer.Attestation) {
	if h.Results == nil {
		return
	}
	if err := h.Results.MarkAttested(ctx, inst.ID(), att.Signature); err != nil {
		h.Log.Warn("audit attestation record failed", "instanceId", inst.ID(), "err", err)
	}
}

// normalizeParticipant lowercases and shape-checks a 0x-prefixed address.
func normalizeParticipant(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return "", false
	}
	for i := 2; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", false
		}
	}
	return s, true
}
