package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"parcelhub/models"
	"parcelhub/service"
)

type AgencyHandler struct {
	Service *service.ShipmentService
	Log     *zap.Logger
}

func (h *AgencyHandler) ListAgencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListAgencies(r.Context())
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Agencies fetched", list)
}

func (h *AgencyHandler) CreateAgency(w http.ResponseWriter, r *http.Request) {
	var a models.TransportAgency
	if !decodeJSON(w, r, &a) {
		return
	}
	a.ID = ""

	if err := h.Service.CreateAgency(r.Context(), &a); err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Agency created", a)
}
