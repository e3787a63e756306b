package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/guidesync/internal/logging"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
	backuprepo "github.com/dmitrijs2005/guidesync/internal/server/repositories/backups"
)

const (
	// DefaultGracePeriod is how long an unreferenced backup survives before
	// the retention run treats it as an orphan.
	DefaultGracePeriod = 7 * 24 * time.Hour

	// DefaultInlineLimit is the payload size above which the snapshot is
	// offloaded to the blob store instead of being stored inline.
	DefaultInlineLimit = 512 * 1024
)

// Options tune backup storage and retention.
type Options struct {
	// TTL sets the expiry on new backups. Zero means backups never expire
	// on their own and are only removed as orphans.
	TTL time.Duration
	// GracePeriod protects young unreferenced backups from the orphan sweep.
	GracePeriod time.Duration
	// InlineLimit is the inline payload size cap in bytes.
	InlineLimit int
}

func DefaultOptions() Options {
	return Options{GracePeriod: DefaultGracePeriod, InlineLimit: DefaultInlineLimit}
}

// Service creates, fetches and retires backups. Payloads under the inline
// limit live in the database row; larger ones go to the blob store with only
// the key kept in the row.
type Service struct {
	repo   backuprepo.Repository
	blobs  BlobStore
	logger logging.Logger
	opts   Options

	now   func() time.Time
	newID func() string
}

func NewService(repo backuprepo.Repository, blobs BlobStore, logger logging.Logger, opts Options) *Service {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.InlineLimit <= 0 {
		opts.InlineLimit = DefaultInlineLimit
	}
	return &Service{
		repo:   repo,
		blobs:  blobs,
		logger: logger,
		opts:   opts,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CreateForInstance persists a snapshot of an instance's remote state.
func (s *Service) CreateForInstance(ctx context.Context, instanceID string, payload []byte) (*models.Backup, error) {
	b := &models.Backup{
		ID:         s.newID(),
		InstanceID: instanceID,
		CreatedAt:  s.now(),
	}
	if s.opts.TTL > 0 {
		expires := b.CreatedAt.Add(s.opts.TTL)
		b.ExpiresAt = &expires
	}

	if s.blobs != nil && len(payload) > s.opts.InlineLimit {
		key := storageKey()
		if err := s.blobs.Put(ctx, key, payload); err != nil {
			return nil, fmt.Errorf("offloading backup payload: %w", err)
		}
		b.PayloadKey = key
	} else {
		b.Payload = payload
	}

	if err := s.repo.Create(ctx, b); err != nil {
		if b.PayloadKey != "" {
			// The row never existed, so the object is unreachable; remove it.
			if derr := s.blobs.Delete(ctx, b.PayloadKey); derr != nil {
				s.logger.Warn(ctx, "deleting stranded backup object failed", "key", b.PayloadKey, "error", derr)
			}
		}
		return nil, err
	}

	s.logger.Info(ctx, "backup created",
		"backup_id", b.ID, "instance_id", instanceID, "bytes", len(payload), "offloaded", b.PayloadKey != "")
	return b, nil
}

// GetWithPayload fetches a backup and materializes its payload, reading it
// back from the blob store when offloaded.
func (s *Service) GetWithPayload(ctx context.Context, id string) (*models.Backup, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.PayloadKey != "" && len(b.Payload) == 0 {
		payload, err := s.blobs.Get(ctx, b.PayloadKey)
		if err != nil {
			return nil, fmt.Errorf("reading backup payload %s: %w", b.PayloadKey, err)
		}
		b.Payload = payload
	}
	return b, nil
}

// References reports how many history rows still point at the backup.
func (s *Service) References(ctx context.Context, id string) (*models.BackupReferences, error) {
	return s.repo.CountReferences(ctx, id)
}

// Cleanup runs one retention pass: expired backups first, then unreferenced
// backups older than the grace period. Individual deletion failures are
// logged and skipped so one bad row cannot wedge the whole run.
func (s *Service) Cleanup(ctx context.Context) (*models.CleanupStats, error) {
	start := s.now()
	stats := &models.CleanupStats{}

	expired, err := s.repo.ListExpired(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("listing expired backups: %w", err)
	}
	stats.Examined += len(expired)
	for _, b := range expired {
		if err := s.delete(ctx, b); err != nil {
			s.logger.Warn(ctx, "deleting expired backup failed", "backup_id", b.ID, "error", err)
			continue
		}
		stats.ExpiredDeleted++
	}

	cutoff := start.Add(-s.opts.GracePeriod)
	orphans, err := s.repo.ListOrphans(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing orphaned backups: %w", err)
	}
	stats.Examined += len(orphans)
	for _, b := range orphans {
		if err := s.delete(ctx, b); err != nil {
			s.logger.Warn(ctx, "deleting orphaned backup failed", "backup_id", b.ID, "error", err)
			continue
		}
		stats.OrphansDeleted++
	}

	stats.Duration = s.now().Sub(start)
	s.logger.Info(ctx, "backup cleanup finished",
		"expired_deleted", stats.ExpiredDeleted,
		"orphans_deleted", stats.OrphansDeleted,
		"examined", stats.Examined,
		"duration", stats.Duration,
	)
	return stats, nil
}

func (s *Service) delete(ctx context.Context, b *models.Backup) error {
	if b.PayloadKey != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, b.PayloadKey); err != nil {
			return fmt.Errorf("deleting backup object: %w", err)
		}
	}
	return s.repo.Delete(ctx, b.ID)
}
