package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/larderhq/larder/internal/auth"
	"github.com/larderhq/larder/internal/list"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/push"
	ws "github.com/larderhq/larder/internal/websocket"
)

type ListHandler struct {
	lists  *list.Service
	hub    *ws.Hub
	pusher *push.Notifier
	logger *slog.Logger
}

func NewListHandler(lists *list.Service, hub *ws.Hub, pusher *push.Notifier, logger *slog.Logger) *ListHandler {
	return &ListHandler{lists: lists, hub: hub, pusher: pusher, logger: logger}
}

// recipients is everyone who should hear about a change to the list.
func recipients(l *model.List) []int64 {
	return append([]int64{l.OwnerID}, l.SharedWith...)
}

func (h *ListHandler) notify(listID, actorID int64, action string) {
	l, err := h.lists.Get(listID, actorID)
	if err != nil {
		h.hub.Notify(ws.NewEvent("list", action, listID, nil), actorID)
		return
	}
	h.hub.Notify(ws.NewEvent("list", action, listID, nil), recipients(l)...)
}

type listRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Recurring   bool           `json:"recurring"`
	Metadata    model.Metadata `json:"metadata"`
}

func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	l, err := h.lists.Create(auth.UserID(r.Context()), req.Name, req.Description, req.Recurring, req.Metadata)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Notify(ws.NewEvent("list", "created", l.ID, nil), l.OwnerID)
	writeJSON(w, http.StatusCreated, l)
}

func (h *ListHandler) List(w http.ResponseWriter, r *http.Request) {
	lists, err := h.lists.ListForUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if lists == nil {
		lists = []model.List{}
	}
	writeJSON(w, http.StatusOK, lists)
}

func (h *ListHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	l, err := h.lists.Get(id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type listUpdateRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Recurring   *bool          `json:"recurring"`
	Metadata    model.Metadata `json:"metadata"`
}

func (h *ListHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req listUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	actorID := auth.UserID(r.Context())
	l, err := h.lists.Update(id, actorID, list.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
		Recurring:   req.Recurring,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(id, actorID, "updated")
	writeJSON(w, http.StatusOK, l)
}

func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	actorID := auth.UserID(r.Context())

	// Resolve recipients before the rows are tombstoned.
	var audience []int64
	if l, err := h.lists.Get(id, actorID); err == nil {
		audience = recipients(l)
	}

	if err := h.lists.Delete(id, actorID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Notify(ws.NewEvent("list", "deleted", id, nil), audience...)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	actorID := auth.UserID(r.Context())
	if err := h.lists.Reset(id, actorID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(id, actorID, "reset")
	w.WriteHeader(http.StatusNoContent)
}

type shareRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *ListHandler) Share(w http.ResponseWriter, r *http.Request) {
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
	if err := h.lists.Share(id, actorID, req.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(id, actorID, "shared")
	if h.pusher != nil {
		if l, err := h.lists.Get(id, actorID); err == nil {
			h.pusher.NotifyUsers(push.Payload{
				Title: "List shared with you",
				Body:  l.Name,
				Tag:   "list-shared",
			}, req.UserID)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListHandler) Revoke(w http.ResponseWriter, r *http.Request) {
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
	if err := h.lists.Revoke(id, actorID, targetID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(id, actorID, "unshared")
	w.WriteHeader(http.StatusNoContent)
}

type listItemRequest struct {
	ProductID int64          `json:"product_id"`
	Quantity  float64        `json:"quantity"`
	Unit      string         `json:"unit"`
	Metadata  model.Metadata `json:"metadata"`
}

func (h *ListHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathInt(r, "list_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid list_id"})
		return
	}

	var req listItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	actorID := auth.UserID(r.Context())
	item, err := h.lists.AddItem(listID, actorID, req.ProductID, req.Quantity, req.Unit, req.Metadata)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(listID, actorID, "updated")
	writeJSON(w, http.StatusCreated, item)
}

type listItemUpdateRequest struct {
	Quantity *float64       `json:"quantity"`
	Unit     *string        `json:"unit"`
	Metadata model.Metadata `json:"metadata"`
}

func (h *ListHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathInt(r, "list_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid list_id"})
		return
	}
	itemID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req listItemUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	actorID := auth.UserID(r.Context())
	item, err := h.lists.UpdateItem(listID, itemID, actorID, list.ItemParams{
		Quantity: req.Quantity,
		Unit:     req.Unit,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(listID, actorID, "updated")
	writeJSON(w, http.StatusOK, item)
}

func (h *ListHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathInt(r, "list_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid list_id"})
		return
	}
	itemID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	actorID := auth.UserID(r.Context())
	if err := h.lists.RemoveItem(listID, itemID, actorID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(listID, actorID, "updated")
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListHandler) SetItemPurchased(w http.ResponseWriter, r *http.Request) {
	listID, err := parsePathInt(r, "list_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid list_id"})
		return
	}
	itemID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		Purchased bool `json:"purchased"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	actorID := auth.UserID(r.Context())
	item, err := h.lists.SetItemPurchased(listID, itemID, actorID, req.Purchased)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.notify(listID, actorID, "updated")
	writeJSON(w, http.StatusOK, item)
}
