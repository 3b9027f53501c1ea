package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"parcelhub/distribution"
	"parcelhub/service"
)

type BatchHandler struct {
	Service *service.ShipmentService
	Log     *zap.Logger
}

// Preview handler. An infeasible selection still answers 200 with
// feasible=false so the client can show the overflow.
func (h *BatchHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PackageIDs  []string                  `json:"package_ids"`
		PullsConfig []distribution.PullConfig `json:"pulls_config"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	preview, err := h.Service.PreviewDistribution(req.PackageIDs, req.PullsConfig)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Distribution computed", preview)
}

func (h *BatchHandler) AutoDistribute(w http.ResponseWriter, r *http.Request) {
	var req service.AutoDistributeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Service.CreateBatchAutoDistribute(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Batch created", res)
}

func (h *BatchHandler) CreateWithPulls(w http.ResponseWriter, r *http.Request) {
	var req service.ManualBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Service.CreateBatchWithPulls(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Batch created", res)
}

// CreatePull handler
func (h *BatchHandler) CreatePull(w http.ResponseWriter, r *http.Request) {
	var req service.PullRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Service.CreatePullWithPackages(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Pull created", res)
}
