package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"polaris-hq/superpose/pkg/superposition"
)

// errorBody is the JSON error envelope. Kind is the stable machine-readable
// error kind clients match on.
type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeErrorMessage writes a JSON error envelope with an explicit kind.
func writeErrorMessage(w http.ResponseWriter, status int, kind, message string) {
	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = message
	writeJSON(w, status, body)
}

// writeError maps a domain error to an HTTP status by its kind and writes
// the JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	kind := superposition.KindOf(err)
	name := string(kind)
	if name == "" {
		name = "INTERNAL"
	}
	writeErrorMessage(w, statusForKind(kind), name, err.Error())
}

// statusForKind maps machine-readable error kinds to HTTP status codes.
func statusForKind(kind superposition.Kind) int {
	switch kind {
	case superposition.KindNotFound:
		return http.StatusNotFound
	case superposition.KindAlreadyExists, superposition.KindAlreadyResolved:
		return http.StatusConflict
	case superposition.KindInvalidWeights, superposition.KindOutOfRange:
		return http.StatusBadRequest
	case superposition.KindEntanglementMismatch:
		return http.StatusConflict
	case superposition.KindDownstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
