package handler

import (
	"log/slog"
	"net/http"

	"github.com/larderhq/larder/internal/backup"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/store"
)

type BackupHandler struct {
	manager     *backup.Manager
	backupStore *store.BackupStore
	logger      *slog.Logger
}

func NewBackupHandler(mgr *backup.Manager, bs *store.BackupStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: mgr, backupStore: bs, logger: logger}
}

// RunNow handles POST /api/backups/run
func (h *BackupHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backups are not configured"})
		return
	}

	record, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "backup failed"})
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// History handles GET /api/backups
func (h *BackupHandler) History(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backupStore.ListRecent(50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list backups"})
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, backups)
}
