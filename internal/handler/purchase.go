package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/larderhq/larder/internal/auth"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/purchase"
	"github.com/larderhq/larder/internal/push"
	ws "github.com/larderhq/larder/internal/websocket"
)

type PurchaseHandler struct {
	purchases *purchase.Service
	hub       *ws.Hub
	pusher    *push.Notifier
	logger    *slog.Logger
}

func NewPurchaseHandler(purchases *purchase.Service, hub *ws.Hub, pusher *push.Notifier, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases, hub: hub, pusher: pusher, logger: logger}
}

// PurchaseList consolidates a list's purchased items into a purchase record.
func (h *PurchaseHandler) PurchaseList(w http.ResponseWriter, r *http.Request) {
	listID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		Metadata model.Metadata `json:"metadata"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}

	actorID := auth.UserID(r.Context())
	p, audience, err := h.purchases.Purchase(listID, actorID, req.Metadata)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Notify(ws.NewEvent("purchase", "created", p.ID, map[string]any{"list_id": listID}), audience...)
	if h.pusher != nil {
		var others []int64
		for _, userID := range audience {
			if userID != actorID {
				others = append(others, userID)
			}
		}
		if len(others) > 0 {
			h.pusher.NotifyUsers(push.Payload{
				Title: "List purchased",
				Body:  p.ListName,
				Tag:   "purchase",
			}, others...)
		}
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.purchases.ListForUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if purchases == nil {
		purchases = []model.Purchase{}
	}
	writeJSON(w, http.StatusOK, purchases)
}

func (h *PurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	p, err := h.purchases.Get(id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PurchaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	actorID := auth.UserID(r.Context())
	if err := h.purchases.Delete(id, actorID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Notify(ws.NewEvent("purchase", "deleted", id, nil), actorID)
	w.WriteHeader(http.StatusNoContent)
}

// Restore builds a fresh list from a historical purchase.
func (h *PurchaseHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	actorID := auth.UserID(r.Context())
	l, err := h.purchases.Restore(id, actorID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Notify(ws.NewEvent("list", "created", l.ID, map[string]any{"restored_from": id}), actorID)
	writeJSON(w, http.StatusCreated, l)
}
