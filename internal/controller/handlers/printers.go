package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"printsmart/internal/store"
	"printsmart/pkg/api"

	"github.com/google/uuid"
)

// CreatePrinter handles POST /printers. New printers start in the
// unknown state until the first probe reports on them.
func (h *Handlers) CreatePrinter(w http.ResponseWriter, r *http.Request) {
	var req api.CreatePrinterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Address == "" {
		h.httpError(w, "Name and address are required", http.StatusBadRequest)
		return
	}

	class := store.DeviceClass(req.Class)
	if req.Class == "" {
		class = store.DeviceClassLaser
	}
	switch class {
	case store.DeviceClassLaser, store.DeviceClassInkjet, store.DeviceClassThermal, store.DeviceClassDotMatrix:
	default:
		h.httpError(w, "Unknown printer class", http.StatusBadRequest)
		return
	}

	printer := &store.Printer{
		ID:             uuid.New(),
		Name:           req.Name,
		Address:        req.Address,
		Class:          class,
		Status:         store.PrinterStatusUnknown,
		SupportsColor:  req.SupportsColor,
		SupportsDuplex: req.SupportsDuplex,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.store.CreatePrinter(r.Context(), printer); err != nil {
		h.httpError(w, "Failed to create printer", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, printerResponse(printer))
}

// ListPrinters handles GET /printers.
func (h *Handlers) ListPrinters(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"

	printers, err := h.store.ListPrinters(r.Context(), activeOnly)
	if err != nil {
		h.httpError(w, "Failed to list printers", http.StatusInternalServerError)
		return
	}

	resp := make([]api.PrinterResponse, 0, len(printers))
	for _, p := range printers {
		resp = append(resp, printerResponse(p))
	}

	h.respondJson(w, http.StatusOK, resp)
}

// GetPrinter handles GET /printers/{id}.
func (h *Handlers) GetPrinter(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid printer id", http.StatusBadRequest)
		return
	}

	printer, err := h.store.GetPrinterByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "Printer not found", http.StatusNotFound)
			return
		}
		h.httpError(w, "Failed to load printer", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, printerResponse(printer))
}

func printerResponse(p *store.Printer) api.PrinterResponse {
	return api.PrinterResponse{
		ID:                  p.ID.String(),
		Name:                p.Name,
		Address:             p.Address,
		Class:               string(p.Class),
		Status:              string(p.Status),
		LastCheckedAt:       p.LastCheckedAt,
		ConsecutiveFailures: p.ConsecutiveFailures,
		Active:              p.Active,
	}
}
