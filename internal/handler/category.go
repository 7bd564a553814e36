package handler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/larderhq/larder/internal/apperr"
	"github.com/larderhq/larder/internal/auth"
	"github.com/larderhq/larder/internal/database"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/store"
)

type CategoryHandler struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewCategoryHandler(db *sql.DB, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{db: db, logger: logger}
}

type categoryRequest struct {
	Name     string         `json:"name"`
	Metadata model.Metadata `json:"metadata"`
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	ownerID := auth.UserID(r.Context())
	var category *model.Category
	err := database.WithTx(h.db, func(tx *sql.Tx) error {
		if err := store.EnsureUniqueName(tx, "categories", ownerID, req.Name, 0); err != nil {
			return err
		}
		var err error
		category, err = store.NewCategoryStore(tx).Create(ownerID, req.Name, req.Metadata)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, category)
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := store.NewCategoryStore(h.db).ListForOwner(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	category, err := store.NewCategoryStore(h.db).GetByID(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if category == nil || category.OwnerID != auth.UserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
		return
	}
	writeJSON(w, http.StatusOK, category)
}

type categoryUpdateRequest struct {
	Name     *string        `json:"name"`
	Metadata model.Metadata `json:"metadata"`
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req categoryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	ownerID := auth.UserID(r.Context())
	var category *model.Category
	txErr := database.WithTx(h.db, func(tx *sql.Tx) error {
		cs := store.NewCategoryStore(tx)
		existing, err := cs.GetByID(id)
		if err != nil {
			return err
		}
		if existing == nil || existing.OwnerID != ownerID {
			return fmt.Errorf("%w: category %d", apperr.ErrNotFound, id)
		}

		name := existing.Name
		if req.Name != nil {
			name = strings.TrimSpace(*req.Name)
			if name == "" {
				return fmt.Errorf("%w: category name is required", apperr.ErrBadRequest)
			}
			if name != existing.Name {
				if err := store.EnsureUniqueName(tx, "categories", ownerID, name, id); err != nil {
					return err
				}
			}
		}

		meta := existing.Metadata
		if req.Metadata != nil {
			meta = req.Metadata
		}

		category, err = cs.Update(id, name, meta)
		return err
	})
	if txErr != nil {
		writeError(w, h.logger, txErr)
		return
	}

	writeJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	cs := store.NewCategoryStore(h.db)
	existing, err := cs.GetByID(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing == nil || existing.OwnerID != auth.UserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
		return
	}

	if err := cs.SoftDelete(id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
