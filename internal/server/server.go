package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/larderhq/larder/internal/auth"
	"github.com/larderhq/larder/internal/backup"
	"github.com/larderhq/larder/internal/email"
	"github.com/larderhq/larder/internal/handler"
	"github.com/larderhq/larder/internal/list"
	"github.com/larderhq/larder/internal/middleware"
	"github.com/larderhq/larder/internal/pantry"
	"github.com/larderhq/larder/internal/purchase"
	"github.com/larderhq/larder/internal/push"
	"github.com/larderhq/larder/internal/store"
	ws "github.com/larderhq/larder/internal/websocket"
)

// Config holds everything the server needs beyond the database handle.
type Config struct {
	JWTSecret    string
	TokenTTL     time.Duration
	EmailToken   string
	EmailFrom    string
	VAPIDPublic  string
	VAPIDPrivate string
	Backup       backup.Config
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	authH         *handler.AuthHandler
	listH         *handler.ListHandler
	purchaseH     *handler.PurchaseHandler
	pantryH       *handler.PantryHandler
	productH      *handler.ProductHandler
	categoryH     *handler.CategoryHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler
	sessionStore  *store.SessionStore
	tokens        *auth.TokenIssuer
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, tokenTTL)

	// Share notifications are best-effort and skipped entirely when no
	// email token is configured.
	var notifier list.Notifier
	emailClient := email.NewClient(cfg.EmailToken, cfg.EmailFrom)
	if emailClient.Configured() {
		notifier = emailClient
	}

	listSvc := list.NewService(db, notifier, logger.With("component", "list"))
	purchaseSvc := purchase.NewService(db, logger.With("component", "purchase"))
	pantrySvc := pantry.NewService(db, notifier, logger.With("component", "pantry"))

	backupMgr := backup.NewManager(cfg.Backup, db, backupStore, logger.With("component", "backup"))

	var pushH *handler.PushHandler
	var pusher *push.Notifier
	if cfg.VAPIDPublic != "" && cfg.VAPIDPrivate != "" {
		pushSvc := push.NewService(cfg.VAPIDPublic, cfg.VAPIDPrivate)
		pushLogger := logger.With("component", "push")
		pushH = handler.NewPushHandler(pushStore, pushSvc, pushLogger)
		pusher = push.NewNotifier(pushStore, pushSvc, pushLogger)
	}

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(userStore, sessionStore, tokens, logger.With("component", "auth")),
		listH:         handler.NewListHandler(listSvc, hub, pusher, logger.With("component", "list_handler")),
		purchaseH:     handler.NewPurchaseHandler(purchaseSvc, hub, pusher, logger.With("component", "purchase_handler")),
		pantryH:       handler.NewPantryHandler(pantrySvc, hub, pusher, logger.With("component", "pantry_handler")),
		productH:      handler.NewProductHandler(db, logger.With("component", "product_handler")),
		categoryH:     handler.NewCategoryHandler(db, logger.With("component", "category_handler")),
		pushH:         pushH,
		backupH:       handler.NewBackupHandler(backupMgr, backupStore, logger.With("component", "backup_handler")),
		sessionStore:  sessionStore,
		tokens:        tokens,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.tokens)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// List routes
	mux.HandleFunc("POST /api/lists", s.listH.Create)
	mux.HandleFunc("GET /api/lists", s.listH.List)
	mux.HandleFunc("GET /api/lists/{id}", s.listH.Get)
	mux.HandleFunc("PUT /api/lists/{id}", s.listH.Update)
	mux.HandleFunc("DELETE /api/lists/{id}", s.listH.Delete)
	mux.HandleFunc("POST /api/lists/{id}/reset", s.listH.Reset)
	mux.HandleFunc("POST /api/lists/{id}/share", s.listH.Share)
	mux.HandleFunc("DELETE /api/lists/{id}/share/{user_id}", s.listH.Revoke)

	// List item routes
	mux.HandleFunc("POST /api/lists/{list_id}/items", s.listH.AddItem)
	mux.HandleFunc("PUT /api/lists/{list_id}/items/{id}", s.listH.UpdateItem)
	mux.HandleFunc("DELETE /api/lists/{list_id}/items/{id}", s.listH.DeleteItem)
	mux.HandleFunc("POST /api/lists/{list_id}/items/{id}/purchased", s.listH.SetItemPurchased)

	// Consolidation and merge
	mux.HandleFunc("POST /api/lists/{id}/purchase", s.purchaseH.PurchaseList)
	mux.HandleFunc("POST /api/lists/{id}/move-to-pantry", s.pantryH.MoveToPantry)

	// Purchase history
	mux.HandleFunc("GET /api/purchases", s.purchaseH.List)
	mux.HandleFunc("GET /api/purchases/{id}", s.purchaseH.Get)
	mux.HandleFunc("DELETE /api/purchases/{id}", s.purchaseH.Delete)
	mux.HandleFunc("POST /api/purchases/{id}/restore", s.purchaseH.Restore)

	// Pantry routes
	mux.HandleFunc("POST /api/pantries", s.pantryH.Create)
	mux.HandleFunc("GET /api/pantries", s.pantryH.List)
	mux.HandleFunc("GET /api/pantries/{id}", s.pantryH.Get)
	mux.HandleFunc("PUT /api/pantries/{id}", s.pantryH.Update)
	mux.HandleFunc("DELETE /api/pantries/{id}", s.pantryH.Delete)
	mux.HandleFunc("POST /api/pantries/{id}/share", s.pantryH.Share)
	mux.HandleFunc("DELETE /api/pantries/{id}/share/{user_id}", s.pantryH.Revoke)
	mux.HandleFunc("GET /api/pantries/{pantry_id}/items", s.pantryH.ListItems)
	mux.HandleFunc("PUT /api/pantries/{pantry_id}/items/{id}", s.pantryH.UpdateItem)
	mux.HandleFunc("DELETE /api/pantries/{pantry_id}/items/{id}", s.pantryH.DeleteItem)

	// Product routes
	mux.HandleFunc("POST /api/products", s.productH.Create)
	mux.HandleFunc("GET /api/products", s.productH.List)
	mux.HandleFunc("GET /api/products/{id}", s.productH.Get)
	mux.HandleFunc("PUT /api/products/{id}", s.productH.Update)
	mux.HandleFunc("DELETE /api/products/{id}", s.productH.Delete)

	// Category routes
	mux.HandleFunc("POST /api/categories", s.categoryH.Create)
	mux.HandleFunc("GET /api/categories", s.categoryH.List)
	mux.HandleFunc("GET /api/categories/{id}", s.categoryH.Get)
	mux.HandleFunc("PUT /api/categories/{id}", s.categoryH.Update)
	mux.HandleFunc("DELETE /api/categories/{id}", s.categoryH.Delete)

	// Push notification routes
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
	}

	// Backup routes
	mux.HandleFunc("POST /api/backups/run", s.backupH.RunNow)
	mux.HandleFunc("GET /api/backups", s.backupH.History)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
