package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/wordmint/internal/auth"
	"example.com/wordmint/internal/game"
	"example.com/wordmint/internal/ratelimit"
	"example.com/wordmint/internal/signer"
	"github.com/stretchr/testify/require"
)

const (
	testKey     = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	participant = "0x00112233445566778899aabbccddeeff00112233"
)

type stubSettlement struct {
	claimed bool
	err     error
	calls   int
}

func (s *stubSettlement) Claimed(ctx context.Context, roundID uint64) (bool, error) {
	s.calls++
	return s.claimed, s.err
}

// newTestAPI builds a handler over a single-word corpus so the target is
// known to the test.
func newTestAPI(t *testing.T, words []string, settle SettlementChecker, strict bool) (*Handler, *http.ServeMux) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc := auth.NewService([]byte("test-secret"), time.Hour)
	deriver := game.NewDeriver([]byte("test-derive"), words)
	games := game.NewService(game.Config{InstanceTTL: time.Hour}, deriver, authSvc, nil, log)

	sgn, err := signer.New(testKey)
	require.NoError(t, err)

	h := &Handler{
		Games:            games,
		Auth:             authSvc,
		Signer:           sgn,
		Log:              log,
		Settlement:       settle,
		SettlementStrict: strict,
	}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func createGame(t *testing.T, mux *http.ServeMux, roundID uint64) CreateResponse {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/api/game", "", CreateRequest{RoundID: roundID, Participant: participant})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[CreateResponse](t, rec)
}

func TestCreate_Idempotent(t *testing.T) {
	_, mux := newTestAPI(t, []string{"PLANT"}, nil, false)

	a := createGame(t, mux, 1)
	require.NotEmpty(t, a.InstanceID)
	require.NotEmpty(t, a.Credential)
	require.Equal(t, 5, a.WordLength)
	require.Equal(t, game.MaxAttempts, a.MaxAttempts)

	b := createGame(t, mux, 1)
	require.Equal(t, a.InstanceID, b.InstanceID)
	require.Equal(t, a.Credential, b.Credential)
}

func TestCreate_Validation(t *testing.T) {
	_, mux := newTestAPI(t, []string{"PLANT"}, nil, false)

	rec := doJSON(t, mux, http.MethodPost, "/api/game", "", CreateRequest{RoundID: 1, Participant: "bogus"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/game", "", CreateRequest{RoundID: 0, Participant: participant})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// participant case-normalized: mixed case maps to the same instance
	a := createGame(t, mux, 2)
	rec = doJSON(t, mux, http.MethodPost, "/api/game", "", CreateRequest{RoundID: 2, Participant: "0x00112233445566778899AABBCCDDEEFF00112233"})
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[CreateResponse](t, rec)
	require.Equal(t, a.InstanceID, b.InstanceID)
}

func TestGuess_CredentialIsolation(t *testing.T) {
	_, mux := newTestAPI(t, []string{"PLANT"}, nil, false)

	a := createGame(t, mux, 1)
	other := createGame(t, mux, 2)

	// wrong credential, existing instance
	rec := doJSON(t, mux, http.MethodPost, "/api/game/guess", other.Credential, GuessRequest{InstanceID: a.InstanceID, Guess: "CRANE"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// valid-looking credential, unknown instance: same rejection
	rec = doJSON(t, mux, http.MethodPost, "/api/game/guess", a.Credential, GuessRequest{InstanceID: "missing", Guess: "CRANE"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// missing credential
	rec = doJSON(t, mux, http.MethodPost, "/api/game/guess", "", GuessRequest{InstanceID: a.InstanceID, Guess: "CRANE"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// no attempt was recorded by any of the rejected calls
	rec = doJSON(t, mux, http.MethodGet, "/api/game/state?instanceId="+a.InstanceID, a.Credential, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[game.StatePayload](t, rec)
	require.Equal(t, 0, st.AttemptCount)
}

func TestGuess_Validation(t *testing.T) {
	_, mux := newTestAPI(t, []string{"PLANT"}, nil, false)
	a := createGame(t, mux, 1)

	for _, g := range []string{"", "AB", "TOOLONG", "PLAN1"} {
		rec := doJSON(t, mux, http.MethodPost, "/api/game/guess", a.Credential, GuessRequest{InstanceID: a.InstanceID, Guess: g})
		require.Equal(t, http.StatusBadRequest, rec.Code, "guess %q", g)
	}

	// lowercase input is normalized, not rejected
	rec := doJSON(t, mux, http.MethodPost, "/api/game/guess", a.Credential, GuessRequest{InstanceID: a.InstanceID, Guess: "crane"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWinFlow_StateAndAttestation(t *testing.T) {
	settle := &stubSettlement{}
	_, mux := newTestAPI(t, []string{"PLANT"}, settle, false)
	a := createGame(t, mux, 7)

	// state before any guess: no target leaked
	rec := doJSON(t, mux, http.MethodGet, "/api/game/state?instanceId="+a.InstanceID, a.Credential, nil)
	st := decode[game.StatePayload](t, rec)
	require.Equal(t, "in_progress", st.Outcome)
	require.Empty(t, st.Target)

	// attestation before winning
	rec = doJSON(t, mux, http.MethodPost, "/api/game/attestation", a.Credential, AttestationRequest{InstanceID: a.InstanceID})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "not_won", decode[ErrorResponse](t, rec).Code)

	// winning guess
	rec = doJSON(t, mux, http.MethodPost, "/api/game/guess", a.Credential, GuessRequest{InstanceID: a.InstanceID, Guess: "plant"})
	require.Equal(t, http.StatusOK, rec.Code)
	gr := decode[GuessResponse](t, rec)
	require.True(t, gr.Won)
	require.True(t, gr.IsTerminal)
	require.Equal(t, 1, gr.AttemptNumber)
	require.Equal(t, "PLANT", gr.Target)

	// first attestation succeeds
	rec = doJSON(t, mux, http.MethodPost, "/api/game/attestation", a.Credential, AttestationRequest{InstanceID: a.InstanceID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	att := decode[AttestationResponse](t, rec)
	require.NotEmpty(t, att.Signature)
	require.Equal(t, participant, att.Participant)
	require.Equal(t, uint64(7), att.RoundID)
	require.Equal(t, 1, att.AttemptCount)

	// second attestation with the same valid credential: already claimed
	rec = doJSON(t, mux, http.MethodPost, "/api/game/attestation", a.Credential, AttestationRequest{InstanceID: a.InstanceID})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "already_claimed", decode[ErrorResponse](t, rec).Code)

	// the pre-check runs only for won instances, so the not-won rejection
	// never reached the settlement layer
	require.Equal(t, 2, settle.calls)
}

func TestLoseFlow_BoundedAttempts(t *testing.T) {
	_, mux := newTestAPI(t, []string{"PLANT"}, nil, false)
	a := createGame(t, mux, 1)

	for n := 1; n <= game.MaxAttempts; n++ {
		rec := doJSON(t, mux, http.MethodPost, "/api/game/guess", a.Credential, GuessRequest{InstanceID: a.InstanceID, Guess: "WRONG"})
		require.Equal(t, http.StatusOK, rec.Code)
		gr := decode[GuessResponse](t, rec)
		require.Equal(t, n, gr.AttemptNumber)
		if n < game.MaxAttempts {
			require.False(t, gr.IsTerminal)
			require.Empty(t, gr.Target)
		} else {
			require.True(t, gr.IsTerminal)
			require.False(t, gr.Won)
			require.Equal(t, "PLANT", gr.Target)
		}
	}

	// 7th guess: state conflict, precise reason
	rec := doJSON(t, mux, http.MethodPost, "/api/game/guess", a.Credential, GuessRequest{InstanceID: a.InstanceID, Guess: "WRONG"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "game_over", decode[ErrorResponse](t, rec).Code)

	// a lost game cannot be attested
	rec = doJSON(t, mux, http.MethodPost, "/api/game/attestation", a.Credential, AttestationRequest{InstanceID: a.InstanceID})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "not_won", decode[ErrorResponse](t, rec).Code)
}

func TestAttestation_SettlementAlreadyConsumed(t *testing.T) {
	settle := &stubSettlement{claimed: true}
	_, mux := newTestAPI(t, []string{"PLANT"}, settle, false)
	a := createGame(t, mux, 1)

	rec := doJSON(t, mux, http.MethodPost, "/api/game/guess", a.Credential, GuessRequest{InstanceID: a.InstanceID, Guess: "PLANT"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/game/attestation", a.Credential, AttestationRequest{InstanceID: a.InstanceID})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "already_claimed", decode[ErrorResponse](t, rec).Code)
}

func TestAttestation_SettlementFailureAdvisory(t *testing.T) {
	settle := &stubSettlement{err: errors.New("connection refused")}
	_, mux := newTestAPI(t, []string{"PLANT"}, settle, false)
	a := createGame(t, mux, 1)

	rec := doJSON(t, mux, http.MethodPost, "/api/game/guess", a.Credential, GuessRequest{InstanceID: a.InstanceID, Guess: "PLANT"})
	require.Equal(t, http.StatusOK, rec.Code)

	// warn mode: the pre-check failure must not block signing
	rec = doJSON(t, mux, http.MethodPost, "/api/game/attestation", a.Credential, AttestationRequest{InstanceID: a.InstanceID})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decode[AttestationResponse](t, rec).Signature)
}

func TestAttestation_SettlementFailureStrict(t *testing.T) {
	settle := &stubSettlement{err: errors.New("connection refused")}
	_, mux := newTestAPI(t, []string{"PLANT"}, settle, true)
	a := createGame(t, mux, 1)

	rec := doJSON(t, mux, http.MethodPost, "/api/game/guess", a.Credential, GuessRequest{InstanceID: a.InstanceID, Guess: "PLANT"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/game/attestation", a.Credential, AttestationRequest{InstanceID: a.InstanceID})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// the claimed flag must not have been consumed by the failed attempt
	settle.err = nil
	rec = doJSON(t, mux, http.MethodPost, "/api/game/attestation", a.Credential, AttestationRequest{InstanceID: a.InstanceID})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSignerEndpoint(t *testing.T) {
	h, mux := newTestAPI(t, []string{"PLANT"}, nil, false)

	rec := doJSON(t, mux, http.MethodGet, "/api/signer", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	require.Equal(t, h.Signer.Address(), body["address"])
}

func TestRateLimitMiddleware(t *testing.T) {
	_, mux := newTestAPI(t, []string{"PLANT"}, nil, false)
	limited := RateLimit(ratelimit.New(1, 2))(mux)

	req := func() int {
		r := httptest.NewRequest(http.MethodGet, "/api/signer", nil)
		r.RemoteAddr = "9.9.9.9:1234"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, r)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, req())
	require.Equal(t, http.StatusOK, req())
	require.Equal(t, http.StatusTooManyRequests, req())
}

func TestMethodGuards(t *testing.T) {
	_, mux := newTestAPI(t, []string{"PLANT"}, nil, false)

	rec := doJSON(t, mux, http.MethodGet, "/api/game", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	rec = doJSON(t, mux, http.MethodPost, "/api/signer", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	rec = doJSON(t, mux, http.MethodPost, "/api/game/state", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
