package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"polaris-hq/superpose/pkg/compliance"
	"polaris-hq/superpose/pkg/service"
	"polaris-hq/superpose/pkg/superposition"
)

// maxRequestBody bounds request bodies; policy payloads are small.
const maxRequestBody = 1 << 20 // 1MB

type registerRequest struct {
	PolicyID          string  `json:"policy_id"`
	Criticality       string  `json:"criticality"`
	DeadlineHours     float64 `json:"deadline_hours"`
	DeterministicMode bool    `json:"deterministic_mode"`
}

type resolveRequest struct {
	ActionContext compliance.ActionContext `json:"action_context"`
	ForceCollapse bool                     `json:"force_collapse"`
}

type observeRequest struct {
	ObserverID string `json:"observer_id"`
	Reason     string `json:"reason"`
}

type weightsRequest struct {
	Approved float64 `json:"approved"`
	Rejected float64 `json:"rejected"`
	Pending  float64 `json:"pending"`
}

type uncertaintyRequest struct {
	Lambda float64 `json:"lambda"`
}

// decodeBody decodes a bounded JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", "failed to read request body")
		return false
	}
	if len(body) == 0 {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", "request body is required")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// handleRegister handles POST /v1/policies.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PolicyID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", "policy_id is required")
		return
	}
	criticality, err := superposition.ParseCriticality(req.Criticality)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if req.DeadlineHours < 0 {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", "deadline_hours must be non-negative")
		return
	}

	out, err := s.svc.Register(r.Context(), service.RegisterInput{
		PolicyID:          req.PolicyID,
		Criticality:       criticality,
		DeadlineHours:     req.DeadlineHours,
		DeterministicMode: req.DeterministicMode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// handleResolve handles POST /v1/policies/{id}/resolve.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	policyID := r.PathValue("id")

	// The body is optional: a bare resolve is a plain measurement with an
	// empty action context.
	var req resolveRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", "failed to read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON: "+err.Error())
			return
		}
	}

	out, err := s.svc.Resolve(r.Context(), policyID, req.ActionContext, req.ForceCollapse)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleObserve handles POST /v1/policies/{id}/observe.
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	policyID := r.PathValue("id")

	var req observeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ObserverID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "BAD_REQUEST", "observer_id is required")
		return
	}

	out, err := s.svc.Observe(r.Context(), policyID, req.ObserverID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetPolicy handles GET /v1/policies/{id}.
func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	record, err := s.svc.GetPolicy(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleUpdateWeights handles PUT /v1/policies/{id}/weights.
func (s *Server) handleUpdateWeights(w http.ResponseWriter, r *http.Request) {
	var req weightsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	record, err := s.svc.UpdateWeights(r.Context(), r.PathValue("id"), superposition.Weights{
		Approved: req.Approved,
		Rejected: req.Rejected,
		Pending:  req.Pending,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleSetUncertainty handles PUT /v1/uncertainty.
func (s *Server) handleSetUncertainty(w http.ResponseWriter, r *http.Request) {
	var req uncertaintyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	out, err := s.svc.SetUncertainty(r.Context(), req.Lambda)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetUncertainty handles GET /v1/uncertainty.
func (s *Server) handleGetUncertainty(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GetUncertainty(r.Context()))
}

// handleHealth handles GET /health (liveness).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// handleReady handles GET /ready (readiness). The service is ready when the
// record store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK

	if err := s.checkStore(r.Context()); err != nil {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Unix(),
	})
}

// checkStore probes the record store with a lookup for a reserved id. A clean
// NotFound counts as healthy.
func (s *Server) checkStore(ctx context.Context) error {
	_, err := s.svc.GetPolicy(ctx, readinessProbeID)
	if err == nil || superposition.IsKind(err, superposition.KindNotFound) {
		return nil
	}
	return errors.New("store probe failed")
}
