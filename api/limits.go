package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subcycle/svc/limits"
	"github.com/dmitrymomot/subcycle/svc/plan"
)

type validateLimitRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	Feature        string    `json:"feature" validate:"required"`
	CurrentCount   *int64    `json:"current_count" validate:"omitempty,min=0"`
	IncrementBy    *int64    `json:"increment_by" validate:"omitempty,min=0"`
}

func (req validateLimitRequest) toDomain(r *http.Request) limits.ValidateRequest {
	return limits.ValidateRequest{
		OrganizationID: req.OrganizationID,
		Feature:        plan.ParseFeature(req.Feature),
		CurrentCount:   req.CurrentCount,
		IncrementBy:    req.IncrementBy,
		Language:       languageFrom(r.Context()),
	}
}

// validateLimit always answers 200 with the decision, allowed or not.
func (h *handlers) validateLimit(w http.ResponseWriter, r *http.Request) {
	var req validateLimitRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, h.log, err)
		return
	}
	d, err := h.limits.Validate(r.Context(), req.toDomain(r))
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, d)
}

// enforceLimit answers 402 with the decision when the operation is denied.
func (h *handlers) enforceLimit(w http.ResponseWriter, r *http.Request) {
	var req validateLimitRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, h.log, err)
		return
	}
	d, err := h.limits.Enforce(r.Context(), req.toDomain(r))
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, d)
}

func (h *handlers) limitsOverview(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	o, err := h.limits.Overview(r.Context(), orgID)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, o)
}

type recordUsageRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	Feature        string    `json:"feature" validate:"required"`
	Count          int64     `json:"count" validate:"min=0"`
}

func (h *handlers) recordUsage(w http.ResponseWriter, r *http.Request) {
	var req recordUsageRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, h.log, err)
		return
	}
	rec, err := h.usage.RecordUsage(r.Context(), req.OrganizationID, plan.ParseFeature(req.Feature), req.Count)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond(w, http.StatusCreated, rec)
}

func (h *handlers) usageHistory(w http.ResponseWriter, r *http.Request) {
	sub, found := h.subscriptionFor(w, r)
	if !found {
		return
	}
	list, err := h.usage.History(r.Context(), sub.ID, limitParam(r))
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, list)
}

const defaultListLimit = 50

// limitParam reads ?limit=, capped at 500.
func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return min(n, 500)
}
