package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"medeasy/rx/domain"
	"medeasy/rx/internal/service"
)

type createPrescriptionRequest struct {
	ImageURL    string     `json:"image_url"`
	PharmacyIDs []string   `json:"pharmacy_ids"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) createPrescription(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleCustomer) {
		return
	}
	var req createPrescriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.rx.CreateRequest(r.Context(), actorFrom(r), service.CreateRequestInput{
		ImageRef:    req.ImageURL,
		PharmacyIDs: req.PharmacyIDs,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) getPrescription(w http.ResponseWriter, r *http.Request) {
	req, err := h.rx.GetRequest(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handler) listPharmacyPrescriptions(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	status := domain.Status(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	reqs, err := h.rx.ListForPharmacy(r.Context(), actorFrom(r), status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reqs)
}

func (h *Handler) proposal(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	lines, err := h.rx.Proposal(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": lines})
}

type quoteLineRequest struct {
	Name        string          `json:"name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitType    string          `json:"unit_type"`
	StockItemID *string         `json:"stock_item_id,omitempty"`
}

type quoteRequest struct {
	Items []quoteLineRequest `json:"items"`
	Note  string             `json:"note,omitempty"`
}

func (q quoteRequest) lines() []service.QuoteLineInput {
	out := make([]service.QuoteLineInput, len(q.Items))
	for i, it := range q.Items {
		out[i] = service.QuoteLineInput{
			Name:        it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			UnitType:    it.UnitType,
			StockItemID: it.StockItemID,
		}
	}
	return out
}

func (h *Handler) validateQuote(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	violations, err := h.rx.ValidateQuote(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.lines())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"valid":      len(violations) == 0,
		"violations": violations,
	})
}

func (h *Handler) submitQuote(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.rx.SubmitQuote(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.lines(), req.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, updated)
}

func (h *Handler) rejectPrescription(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.rx.Reject(r.Context(), actorFrom(r), chi.URLParam(r, "id"), payload.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) revisePrescription(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	var payload struct {
		Items []domain.SuggestedItem `json:"items"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.rx.Revise(r.Context(), actorFrom(r), chi.URLParam(r, "id"), payload.Items)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) expirePrescription(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	updated, err := h.rx.Expire(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}
