package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"medeasy/rx/domain"
	"medeasy/rx/internal/service"
)

func (h *Handler) searchCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) suggestCatalog(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := h.catalog.Suggest(r.Context(), name, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

type catalogRow struct {
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
}

type catalogImportRequest struct {
	Items  []catalogRow `json:"items"`
	Commit bool         `json:"commit"`
}

func (h *Handler) importCatalog(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req catalogImportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries := make([]domain.CatalogEntry, len(req.Items))
	for i, it := range req.Items {
		entries[i] = domain.CatalogEntry{CanonicalName: it.Name, Category: it.Category, ReferencePrice: it.ReferencePrice}
	}
	report, err := h.catalog.ImportCatalog(r.Context(), actorFrom(r), entries, req.Commit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if report.Committed {
		status = http.StatusCreated
	}
	respondJSON(w, status, report)
}

// Stock handlers

type stockRequest struct {
	Name                 string          `json:"name"`
	UnitPrice            decimal.Decimal `json:"unit_price"`
	Quantity             int64           `json:"quantity"`
	UnitType             string          `json:"unit_type"`
	RequiresPrescription bool            `json:"requires_prescription"`
	CatalogEntryID       *string         `json:"catalog_entry_id,omitempty"`
	Force                bool            `json:"force,omitempty"`
}

func (s stockRequest) input() service.StockInput {
	return service.StockInput{
		Name:                 s.Name,
		UnitPrice:            s.UnitPrice,
		Quantity:             s.Quantity,
		UnitType:             s.UnitType,
		RequiresPrescription: s.RequiresPrescription,
		CatalogEntryID:       s.CatalogEntryID,
		Force:                s.Force,
	}
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	items, err := h.catalog.ListStock(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) addStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := h.catalog.AddStockItem(r.Context(), actorFrom(r), req.input())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

type stockImportRequest struct {
	Items  []stockRequest `json:"items"`
	Commit bool           `json:"commit"`
}

func (h *Handler) importStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	var req stockImportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows := make([]service.StockInput, len(req.Items))
	for i, it := range req.Items {
		rows[i] = it.input()
	}
	report, err := h.catalog.ImportStock(r.Context(), actorFrom(r), rows, req.Commit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if report.Committed {
		status = http.StatusCreated
	}
	respondJSON(w, status, report)
}

func (h *Handler) updateStockQuantity(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	var payload struct {
		Quantity *int64 `json:"quantity"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Quantity == nil {
		respondError(w, http.StatusBadRequest, "quantity is required")
		return
	}
	item, err := h.catalog.UpdateStockQuantity(r.Context(), actorFrom(r), chi.URLParam(r, "id"), *payload.Quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}
