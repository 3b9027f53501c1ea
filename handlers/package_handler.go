package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"parcelhub/models"
	"parcelhub/service"
)

type PackageHandler struct {
	Service *service.ShipmentService
	Log     *zap.Logger
}

// ListPackages handler
func (h *PackageHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	filter, err := packageFilter(r)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}

	list, err := h.Service.ListPackages(r.Context(), filter)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	if list == nil {
		list = []*models.Package{}
	}
	writeOK(w, http.StatusOK, "Packages fetched", list)
}

func packageFilter(r *http.Request) (models.PackageFilter, error) {
	q := r.URL.Query()
	var f models.PackageFilter

	if v := q.Get("parent"); v != "" {
		f.ParentID = &v
	}
	if v := q.Get("pull"); v != "" {
		f.PullID = &v
	}
	for _, flag := range []struct {
		name string
		dst  *bool
	}{
		{"without_parent", &f.WithoutParent},
		{"without_pull", &f.WithoutPull},
	} {
		v := q.Get(flag.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, service.Invalid("%s must be a boolean", flag.name)
		}
		*flag.dst = b
	}
	if v := q.Get("exclude_ids"); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				f.ExcludeIDs = append(f.ExcludeIDs, id)
			}
		}
	}
	f.Status = models.PackageStatus(strings.ToUpper(q.Get("status")))
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, service.Invalid("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

// GetPackage handler
func (h *PackageHandler) GetPackage(w http.ResponseWriter, r *http.Request, id string) {
	pkg, err := h.Service.GetPackage(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Package fetched", pkg)
}

func (h *PackageHandler) Shipping(w http.ResponseWriter, r *http.Request, id string) {
	info, err := h.Service.EffectiveAttributes(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Shipping information resolved", info)
}

func (h *PackageHandler) Children(w http.ResponseWriter, r *http.Request, id string) {
	list, err := h.Service.Children(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	if list == nil {
		list = []*models.Package{}
	}
	writeOK(w, http.StatusOK, "Children fetched", list)
}

func (h *PackageHandler) Descendants(w http.ResponseWriter, r *http.Request, id string) {
	list, err := h.Service.Descendants(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Descendants fetched", list)
}

func (h *PackageHandler) Ancestry(w http.ResponseWriter, r *http.Request, id string) {
	a, err := h.Service.Ancestry(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Ancestry fetched", a)
}

// AssociateChildren responds 200 even when some children were refused; the
// report lists every outcome.
func (h *PackageHandler) AssociateChildren(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		ChildIDs []string `json:"child_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := h.Service.AssociateChildren(r.Context(), id, req.ChildIDs)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}

	msg := strconv.Itoa(len(report.Associated)) + " package(s) associated"
	if n := len(report.Rejected) + len(report.Failed); n > 0 {
		msg += ", " + strconv.Itoa(n) + " not associated"
	}
	writeOK(w, http.StatusOK, msg, report)
}

func (h *PackageHandler) CreateChild(w http.ResponseWriter, r *http.Request, id string) {
	var draft service.ChildDraft
	if !decodeJSON(w, r, &draft) {
		return
	}

	child, err := h.Service.CreateChild(r.Context(), id, draft)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Child package created", child)
}

func (h *PackageHandler) Detach(w http.ResponseWriter, r *http.Request, id string) {
	pkg, err := h.Service.DetachChild(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Package detached", pkg)
}

// SetParent accepts {"parent_id": "..."} or {"parent_id": null}.
func (h *PackageHandler) SetParent(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		ParentID json.RawMessage `json:"parent_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	var parentID *string
	if len(req.ParentID) > 0 && string(req.ParentID) != "null" {
		if err := json.Unmarshal(req.ParentID, &parentID); err != nil {
			writeError(w, h.Log, r, service.Invalid("parent_id must be a string or null"))
			return
		}
	}

	pkg, err := h.Service.SetParent(r.Context(), id, parentID)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Parent updated", pkg)
}

func (h *PackageHandler) MigrateCode(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		NewGuideNumber string `json:"new_guide_number"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.Service.MigrateGuideNumber(r.Context(), id, req.NewGuideNumber)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Guide number migrated", m)
}
