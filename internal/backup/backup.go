// Package backup uploads encrypted snapshots of the database to S3-compatible
// storage on a fixed interval.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3         S3Config
	DBPath     string
	Passphrase string
	Interval   time.Duration
}

// Manager snapshots the database, encrypts the copy, and uploads it.
// A zero S3 config or empty passphrase disables it.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	db     *sql.DB
	store  *store.BackupStore
	client s3Client
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, bs *store.BackupStore, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		db:     db,
		store:  bs,
		logger: logger,
	}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether the manager has everything it needs to run.
func (m *Manager) Enabled() bool {
	return m.client != nil
}

// Start begins the periodic backup loop. It is a no-op when disabled.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		m.logger.Info("backups disabled")
		return
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	interval := m.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunNow snapshots, encrypts, and uploads a backup immediately, returning the
// recorded metadata row.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	if !m.Enabled() {
		return nil, fmt.Errorf("backup not configured")
	}

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	objectKey := fmt.Sprintf("backups/larder-%s.db.enc", timestamp)

	snapshot := filepath.Join(os.TempDir(), fmt.Sprintf("larder-backup-%s.db", timestamp))
	defer os.Remove(snapshot)

	// VACUUM INTO produces a consistent single-file copy even with WAL active.
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	encrypted, err := Encrypt(plaintext, m.cfg.Passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(encrypted),
		ContentLength: aws.Int64(int64(len(encrypted))),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	record, err := m.store.Create(objectKey, int64(len(encrypted)))
	if err != nil {
		return nil, fmt.Errorf("record backup: %w", err)
	}

	m.logger.Info("backup uploaded", "key", objectKey, "bytes", record.SizeBytes)
	return record, nil
}
