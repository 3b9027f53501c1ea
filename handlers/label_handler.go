package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"parcelhub/service"
	"parcelhub/utils"
)

// LabelRenderer turns label data into PDF bytes.
type LabelRenderer interface {
	GenerateLabelPDF(ctx context.Context, data utils.LabelData) ([]byte, error)
}

// LabelUploader publishes a generated label and returns its URL.
type LabelUploader interface {
	Upload(ctx context.Context, fileBytes []byte, filename string) (string, error)
}

type LabelHandler struct {
	Service  *service.ShipmentService
	Renderer LabelRenderer
	Uploader LabelUploader // nil disables ?upload=true
	SavePath string
	Log      *zap.Logger
	Now      func() time.Time
}

// Label generates the shipping label of a package. With ?inline=true the
// PDF is streamed back; otherwise it is saved under SavePath and, with
// ?upload=true, published through the uploader.
func (h *LabelHandler) Label(w http.ResponseWriter, r *http.Request, id string) {
	q := r.URL.Query()
	inline, _ := strconv.ParseBool(q.Get("inline"))
	upload, _ := strconv.ParseBool(q.Get("upload"))
	if upload && h.Uploader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ApiResponse{Success: false, Message: "label uploads are not configured"})
		return
	}

	info, err := h.Service.EffectiveAttributes(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}

	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	data := utils.NewLabelData(info.Package, info.ShipmentType, info.Effective, now)
	pdfBytes, err := h.Renderer.GenerateLabelPDF(r.Context(), data)
	if err != nil {
		writeError(w, h.Log, r, fmt.Errorf("failed to generate PDF: %w", err))
		return
	}

	filename := fmt.Sprintf("label_%s_%d.pdf", info.Package.ID, now.Unix())
	if inline {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdfBytes)
		return
	}

	saveDir := h.SavePath
	if saveDir == "" {
		saveDir = "./labels"
	}
	if err := os.MkdirAll(saveDir, os.ModePerm); err != nil {
		writeError(w, h.Log, r, fmt.Errorf("failed to create save directory: %w", err))
		return
	}
	if err := os.WriteFile(filepath.Join(saveDir, filename), pdfBytes, 0644); err != nil {
		writeError(w, h.Log, r, fmt.Errorf("failed to save PDF: %w", err))
		return
	}

	out := map[string]string{"file": filename}
	if upload {
		url, err := h.Uploader.Upload(r.Context(), pdfBytes, filename)
		if err != nil {
			writeError(w, h.Log, r, err)
			return
		}
		out["url"] = url
	}

	h.Log.Info("label generated",
		zap.String("package_id", info.Package.ID),
		zap.String("file", filename),
		zap.Bool("uploaded", upload))
	writeOK(w, http.StatusOK, "Label generated", out)
}
