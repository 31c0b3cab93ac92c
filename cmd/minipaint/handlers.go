package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fpang/minipaint/internal/colormatch"
	"github.com/fpang/minipaint/internal/filehandler"
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/fpang/minipaint/internal/plan"
	"github.com/fpang/minipaint/internal/planner"
	"github.com/fpang/minipaint/internal/settings"
	"github.com/fpang/minipaint/internal/store"
)

// GET /api/health
func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"version":  commitHash,
		"provider": a.settings.Get().Provider,
	})
}

// --- Settings ---

// GET /api/settings
func (a *app) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.settings.Get())
}

// PUT /api/settings
func (a *app) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var in settings.Settings
	if err := decodeJSON(w, r, &in); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := a.settings.Update(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// --- Inventory ---

// GET /api/inventory
func (a *app) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.inventory.Snapshot())
}

// POST /api/inventory/paints
//
// An empty hex is looked up through the model.
func (a *app) handleAddPaint(w http.ResponseWriter, r *http.Request) {
	var in inventory.Paint
	if err := decodeJSON(w, r, &in); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.addPaint(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// PUT /api/inventory/paints/{id}
func (a *app) handleUpdatePaint(w http.ResponseWriter, r *http.Request) {
	var in inventory.Paint
	if err := decodeJSON(w, r, &in); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.ID = r.PathValue("id")
	hex, err := colormatch.NormalizeHex(in.Hex)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid hex colour")
		return
	}
	in.Hex = hex
	if in.Type == "" {
		in.Type = inventory.PaintAcrylic
	}
	if err := a.inventory.UpdatePaint(r.Context(), in); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, in)
}

// POST /api/inventory/{thinners|varnishes|washes}
func (a *app) handleAddTool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch normalizeKind(r.PathValue("kind")) {
	case kindThinners:
		var in inventory.Thinner
		if err := decodeJSON(w, r, &in); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		t, err := a.inventory.AddThinner(ctx, in)
		respondCreated(w, t, err)
	case kindVarnishes:
		var in inventory.Varnish
		if err := decodeJSON(w, r, &in); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		v, err := a.inventory.AddVarnish(ctx, in)
		respondCreated(w, v, err)
	case kindWashes:
		var in inventory.Wash
		if err := decodeJSON(w, r, &in); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		if in.Hex != "" {
			hex, err := colormatch.NormalizeHex(in.Hex)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid hex colour")
				return
			}
			in.Hex = hex
		}
		wash, err := a.inventory.AddWash(ctx, in)
		respondCreated(w, wash, err)
	default:
		httpError(w, http.StatusNotFound, "unknown inventory kind")
	}
}

// respondCreated responds 201 with v, or with the mapped error.
func respondCreated(w http.ResponseWriter, v any, err error) {
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, v)
}

// DELETE /api/inventory/{kind}/{id}
func (a *app) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if normalizeKind(r.PathValue("kind")) == "" {
		httpError(w, http.StatusNotFound, "unknown inventory kind")
		return
	}
	if err := a.removeItem(r.Context(), r.PathValue("kind"), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importRequest struct {
	Text  string `json:"text"`
	Brand string `json:"brand"`
}

type importResponse struct {
	inventory.ImportResult
	Inventory inventory.Inventory `json:"inventory"`
}

// POST /api/inventory/import
func (a *app) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		httpError(w, http.StatusBadRequest, "text is required")
		return
	}
	res, err := a.importList(r.Context(), req.Text, req.Brand, nil)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, importResponse{ImportResult: res, Inventory: a.inventory.Snapshot()})
}

// --- Model helpers ---

type hexRequest struct {
	Brand string `json:"brand"`
	Name  string `json:"name"`
}

// POST /api/hex
func (a *app) handleHex(w http.ResponseWriter, r *http.Request) {
	var req hexRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httpError(w, http.StatusBadRequest, "name is required")
		return
	}
	p, err := a.currentPlanner(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	hex, err := p.GetHexForPaint(r.Context(), req.Brand, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"hex": hex, "description": colormatch.DescribeColor(hex)})
}

type imagePayload struct {
	Data string `json:"data"`
	Type string `json:"type"`
}

func (p imagePayload) decode() (*filehandler.ImageFile, error) {
	img, err := filehandler.DecodeBase64Image(p.Data, p.Type)
	if err != nil {
		return nil, err
	}
	if !filehandler.IsSupportedImage(img.MIMEType) {
		return nil, fmt.Errorf("unsupported image type %q", img.MIMEType)
	}
	return img, nil
}

type partsRequest struct {
	Image   imagePayload      `json:"image"`
	Regions []plan.RegionItem `json:"regions"`
}

type partsResponse struct {
	Suggestions []plan.PartSuggestion `json:"suggestions"`
	Regions     []plan.RegionItem     `json:"regions"`
}

// POST /api/parts
//
// Suggestions are merged into the caller's region list as unconfirmed items.
func (a *app) handleParts(w http.ResponseWriter, r *http.Request) {
	var req partsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	img, err := req.Image.decode()
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.currentPlanner(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	suggestions, err := p.IdentifyPartsInImage(r.Context(), img)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, partsResponse{
		Suggestions: suggestions,
		Regions:     plan.MergeSuggestions(plan.NormalizeRegionItems(req.Regions), suggestions),
	})
}

// --- Plans ---

type planRequest struct {
	ProjectName string            `json:"projectName"`
	Source      string            `json:"source"`
	Image       imagePayload      `json:"image"`
	Regions     []plan.RegionItem `json:"regions"`
	Save        bool              `json:"save"`
}

type planResponse struct {
	ID   string            `json:"id,omitempty"`
	Plan *plan.ProjectPlan `json:"plan"`
}

// POST /api/plans
func (a *app) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	img, err := req.Image.decode()
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.generate(r.Context(), planner.Request{
		ProjectName: req.ProjectName,
		Source:      req.Source,
		Image:       img,
	}, req.Regions)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := planResponse{Plan: result}
	if req.Save {
		if resp.ID, err = a.store.SavePlan(r.Context(), result); err != nil {
			respondError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/plans?limit=N
func (a *app) handleListPlans(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httpError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	plans, err := a.store.ListPlans(r.Context(), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if plans == nil {
		plans = []store.PlanSummary{}
	}
	respondJSON(w, http.StatusOK, plans)
}

// GET /api/plans/{id}
func (a *app) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := a.store.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DELETE /api/plans/{id}
func (a *app) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeletePlan(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
