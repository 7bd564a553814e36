package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/larderhq/larder/internal/auth"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/pantry"
	"github.com/larderhq/larder/internal/push"
	ws "github.com/larderhq/larder/internal/websocket"
)

type PantryHandler struct {
	pantries *pantry.Service
	hub      *ws.Hub
	pusher   *push.Notifier
	logger   *slog.Logger
}

func NewPantryHandler(pantries *pantry.Service, hub *ws.Hub, pusher *push.Notifier, logger *slog.Logger) *PantryHandler {
	return &PantryHandler{pantries: pantries, hub: hub, pusher: pusher, logger: logger}
}

func (h *PantryHandler) notify(pantryID, actorID int64, action string) {
	p, err := h.pantries.Get(pantryID, actorID)
	if err != nil {
		h.hub.Notify(ws.NewEvent("pantry", action, pantryID, nil), actorID)
		return
	}
	audience := append([]int64{p.OwnerID}, p.SharedWith...)
	h.hub.Notify(ws.NewEvent("pantry", action, pantryID, nil), audience...)
}

type pantryRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Metadata    model.Metadata `json:"metadata"`
}

func (h *PantryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req pantryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	p, err := h.pantries.Create(auth.UserID(r.Context()), req.Name, req.Description, req.Metadata)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Notify(ws.NewEvent("pantry", "created", p.ID, nil), p.OwnerID)
	writeJSON(w, http.StatusCreated, p)
}

func (h *PantryHandler) List(w http.ResponseWriter, r *http.Request) {
	pantries, err := h.pantries.ListForUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if pantries == nil {
		pantries = []model.Pantry{}
	}
	writeJSON(w, http.StatusOK, pantries)
}

func (h *PantryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	p, err := h.pantries.Get(id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type pantryUpdateRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Metadata    model.Metadata `json:"metadata"`
}

func (h *PantryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req pantryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	actorID := auth.UserID(r.Context())
	p, err := h.pantries.Update(id, actorID, pantry.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(id, actorID, "updated")
	writeJSON(w, http.StatusOK, p)
}

func (h *PantryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	actorID := auth.UserID(r.Context())

	var audience []int64
	if p, err := h.pantries.Get(id, actorID); err == nil {
		audience = append([]int64{p.OwnerID}, p.SharedWith...)
	}

	if err := h.pantries.Delete(id, actorID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Notify(ws.NewEvent("pantry", "deleted", id, nil), audience...)
	w.WriteHeader(http.StatusNoContent)
}

func (h *PantryHandler) Share(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	actorID := auth.UserID(r.Context())
	if err := h.pantries.Share(id, actorID, req.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(id, actorID, "shared")
	if h.pusher != nil {
		if p, err := h.pantries.Get(id, actorID); err == nil {
			h.pusher.NotifyUsers(push.Payload{
				Title: "Pantry shared with you",
				Body:  p.Name,
				Tag:   "pantry-shared",
			}, req.UserID)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PantryHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	targetID, err := parsePathInt(r, "user_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user_id"})
		return
	}

	actorID := auth.UserID(r.Context())
	if err := h.pantries.Revoke(id, actorID, targetID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(id, actorID, "unshared")
	w.WriteHeader(http.StatusNoContent)
}

func (h *PantryHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	pantryID, err := parsePathInt(r, "pantry_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pantry_id"})
		return
	}

	items, err := h.pantries.Items(pantryID, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []model.PantryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type pantryItemUpdateRequest struct {
	Quantity *float64       `json:"quantity"`
	Unit     *string        `json:"unit"`
	Metadata model.Metadata `json:"metadata"`
}

func (h *PantryHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	pantryID, err := parsePathInt(r, "pantry_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pantry_id"})
		return
	}
	itemID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req pantryItemUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	actorID := auth.UserID(r.Context())
	item, err := h.pantries.UpdateItem(pantryID, itemID, actorID, pantry.ItemParams{
		Quantity: req.Quantity,
		Unit:     req.Unit,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(pantryID, actorID, "updated")
	writeJSON(w, http.StatusOK, item)
}

func (h *PantryHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	pantryID, err := parsePathInt(r, "pantry_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pantry_id"})
		return
	}
	itemID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	actorID := auth.UserID(r.Context())
	if err := h.pantries.RemoveItem(pantryID, itemID, actorID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(pantryID, actorID, "updated")
	w.WriteHeader(http.StatusNoContent)
}

// MoveToPantry folds a list's purchased items into pantry stock.
func (h *PantryHandler) MoveToPantry(w http.ResponseWriter, r *http.Request) {
	listID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	actorID := auth.UserID(r.Context())
	items, err := h.pantries.MoveToPantry(listID, actorID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []model.PantryItem{}
	}

	h.hub.Notify(ws.NewEvent("pantry", "merged", listID, map[string]any{"items": len(items)}), actorID)
	writeJSON(w, http.StatusOK, items)
}
