package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/larderhq/larder/internal/backup"
	"github.com/larderhq/larder/internal/database"
	"github.com/larderhq/larder/internal/logging"
	"github.com/larderhq/larder/internal/server"
)

func main() {
	port := os.Getenv("LARDER_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("LARDER_DB_PATH")
	if dbPath == "" {
		dbPath = "larder.db"
	}

	logger := logging.Setup(os.Getenv("LARDER_LOG_LEVEL"))

	jwtSecret := os.Getenv("LARDER_JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("LARDER_JWT_SECRET is required")
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg := server.Config{
		JWTSecret:    jwtSecret,
		EmailToken:   os.Getenv("LARDER_POSTMARK_TOKEN"),
		EmailFrom:    os.Getenv("LARDER_EMAIL_FROM"),
		VAPIDPublic:  os.Getenv("LARDER_VAPID_PUBLIC_KEY"),
		VAPIDPrivate: os.Getenv("LARDER_VAPID_PRIVATE_KEY"),
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("LARDER_S3_ENDPOINT"),
				Bucket:    os.Getenv("LARDER_S3_BUCKET"),
				Region:    os.Getenv("LARDER_S3_REGION"),
				AccessKey: os.Getenv("LARDER_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("LARDER_S3_SECRET_KEY"),
			},
			DBPath:     dbPath,
			Passphrase: os.Getenv("LARDER_BACKUP_PASSPHRASE"),
		},
	}

	srv := server.New(db, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	// Periodic cleanup of expired sessions and stale rate limit entries.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Warn("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Larder running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
