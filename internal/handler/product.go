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

type ProductHandler struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewProductHandler(db *sql.DB, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{db: db, logger: logger}
}

type productRequest struct {
	Name       string         `json:"name"`
	CategoryID *int64         `json:"category_id"`
	PantryID   *int64         `json:"pantry_id"`
	Metadata   model.Metadata `json:"metadata"`
}

// validateRefs checks that a referenced category or pantry exists, is active,
// and belongs to the owner.
func validateRefs(tx store.DBTX, ownerID int64, categoryID, pantryID *int64) error {
	if categoryID != nil {
		c, err := store.NewCategoryStore(tx).GetByID(*categoryID)
		if err != nil {
			return err
		}
		if c == nil || c.OwnerID != ownerID {
			return fmt.Errorf("%w: category %d", apperr.ErrNotFound, *categoryID)
		}
	}
	if pantryID != nil {
		p, err := store.NewPantryStore(tx).GetByID(*pantryID)
		if err != nil {
			return err
		}
		if p == nil || p.OwnerID != ownerID {
			return fmt.Errorf("%w: pantry %d", apperr.ErrNotFound, *pantryID)
		}
	}
	return nil
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
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
	var product *model.Product
	err := database.WithTx(h.db, func(tx *sql.Tx) error {
		if err := validateRefs(tx, ownerID, req.CategoryID, req.PantryID); err != nil {
			return err
		}
		if err := store.EnsureUniqueName(tx, "products", ownerID, req.Name, 0); err != nil {
			return err
		}
		var err error
		product, err = store.NewProductStore(tx).Create(ownerID, req.Name, req.CategoryID, req.PantryID, req.Metadata)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := store.NewProductStore(h.db).ListForOwner(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	product, err := store.NewProductStore(h.db).GetByID(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if product == nil || product.OwnerID != auth.UserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	writeJSON(w, http.StatusOK, product)
}

type productUpdateRequest struct {
	Name       *string        `json:"name"`
	CategoryID *int64         `json:"category_id"`
	PantryID   *int64         `json:"pantry_id"`
	ClearRefs  bool           `json:"clear_refs"`
	Metadata   model.Metadata `json:"metadata"`
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req productUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	ownerID := auth.UserID(r.Context())
	var product *model.Product
	txErr := database.WithTx(h.db, func(tx *sql.Tx) error {
		ps := store.NewProductStore(tx)
		existing, err := ps.GetByID(id)
		if err != nil {
			return err
		}
		if existing == nil || existing.OwnerID != ownerID {
			return fmt.Errorf("%w: product %d", apperr.ErrNotFound, id)
		}

		name := existing.Name
		if req.Name != nil {
			name = strings.TrimSpace(*req.Name)
			if name == "" {
				return fmt.Errorf("%w: product name is required", apperr.ErrBadRequest)
			}
			if name != existing.Name {
				if err := store.EnsureUniqueName(tx, "products", ownerID, name, id); err != nil {
					return err
				}
			}
		}

		categoryID := existing.CategoryID
		pantryID := existing.PantryID
		if req.ClearRefs {
			categoryID, pantryID = nil, nil
		}
		if req.CategoryID != nil {
			categoryID = req.CategoryID
		}
		if req.PantryID != nil {
			pantryID = req.PantryID
		}
		if err := validateRefs(tx, ownerID, categoryID, pantryID); err != nil {
			return err
		}

		meta := existing.Metadata
		if req.Metadata != nil {
			meta = req.Metadata
		}

		product, err = ps.Update(id, name, categoryID, pantryID, meta)
		return err
	})
	if txErr != nil {
		writeError(w, h.logger, txErr)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	ps := store.NewProductStore(h.db)
	existing, err := ps.GetByID(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing == nil || existing.OwnerID != auth.UserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}

	if err := ps.SoftDelete(id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
