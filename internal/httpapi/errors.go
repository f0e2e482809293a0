package httpapi

import (
	"encoding/json"
	"net/http"
)

// Error codes follow the taxonomy: admission and authentication failures
// are uniform and never leak the underlying cause; state conflicts are
// precise because the caller legitimately needs to know why.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, ErrorResponse{Code: errCode, Message: msg})
}

// writeUnauthorized is the single rejection for every authentication
// failure: missing token, bad token, wrong credential, unknown instance.
func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credential")
}
