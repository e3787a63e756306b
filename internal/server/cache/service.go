// Package cache implements the versioned cache of upstream guide definitions,
// with staleness and commit-hash tracking. Payload compression is a storage
// detail handled by the Codec; versions are totally ordered per key.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/logging"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
	cacherepo "github.com/dmitrijs2005/guidesync/internal/server/repositories/cache"
)

// DefaultStaleAfter is the staleness threshold applied when the config does
// not override it.
const DefaultStaleAfter = 12 * time.Hour

type cacheKey struct {
	serviceType common.ServiceType
	configType  common.ConfigType
}

// Service is the cache manager. It owns CacheEntry rows exclusively.
type Service struct {
	repo       cacherepo.Repository
	codec      Codec
	staleAfter time.Duration
	logger     logging.Logger
	now        func() time.Time

	mu    sync.Mutex
	locks map[cacheKey]*sync.Mutex
}

// NewService constructs the cache manager. staleAfter <= 0 selects the
// default threshold.
func NewService(repo cacherepo.Repository, codec Codec, staleAfter time.Duration, logger logging.Logger) *Service {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Service{
		repo:       repo,
		codec:      codec,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
		locks:      map[cacheKey]*sync.Mutex{},
	}
}

func (s *Service) keyLock(k cacheKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	return l
}

// Get returns the logical payload for the key, or nil when the key is absent.
func (s *Service) Get(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType) ([]byte, error) {
	e, err := s.GetEntry(ctx, serviceType, configType)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return e.Payload, nil
}

// GetEntry returns the full entry with the payload already decompressed.
func (s *Service) GetEntry(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType) (*models.CacheEntry, error) {
	e, err := s.repo.Get(ctx, serviceType, configType)
	if err != nil {
		return nil, err
	}
	payload, err := s.codec.Decode(e.Payload, e.Compressed)
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	e.Compressed = false
	return e, nil
}

// Set upserts the payload for the key. Concurrent sets for the same key
// serialize on a per-key lock, and the repository increments the version
// inside the upsert, so the stored version reflects the last writer with no
// gaps or duplicates. Returns the new version.
func (s *Service) Set(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType, payload []byte, commitHash string) (int64, error) {
	k := cacheKey{serviceType, configType}
	l := s.keyLock(k)
	l.Lock()
	defer l.Unlock()

	itemCount := countItems(payload)

	stored, compressed, err := s.codec.Encode(payload)
	if err != nil {
		return 0, err
	}

	version, err := s.repo.Upsert(ctx, &models.CacheEntry{
		ServiceType: serviceType,
		ConfigType:  configType,
		Payload:     stored,
		Compressed:  compressed,
		CommitHash:  commitHash,
		ItemCount:   itemCount,
		SizeBytes:   int64(len(stored)),
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug(ctx, "cache entry stored",
		"service", serviceType, "config", configType,
		"version", version, "items", itemCount, "commit", commitHash)
	return version, nil
}

// countItems reports how many definition documents the payload holds.
// Non-array payloads count as a single item.
func countItems(payload []byte) int {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		if len(payload) == 0 {
			return 0
		}
		return 1
	}
	return len(items)
}

// IsFresh reports whether the key exists and is within the staleness
// threshold. It is a pure read; staleness never mutates state.
func (s *Service) IsFresh(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType) (bool, error) {
	e, err := s.repo.Get(ctx, serviceType, configType)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.fresh(e.UpdatedAt), nil
}

func (s *Service) fresh(updatedAt time.Time) bool {
	return s.now().Sub(updatedAt) <= s.staleAfter
}

// GetStatus returns the externally visible state of one key.
func (s *Service) GetStatus(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType) (*models.CacheStatus, error) {
	e, err := s.repo.Get(ctx, serviceType, configType)
	if err != nil {
		return nil, err
	}
	return s.status(e), nil
}

// GetAllStatuses returns the state of every key.
func (s *Service) GetAllStatuses(ctx context.Context) ([]*models.CacheStatus, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*models.CacheStatus, 0, len(entries))
	for _, e := range entries {
		result = append(result, s.status(e))
	}
	return result, nil
}

func (s *Service) status(e *models.CacheEntry) *models.CacheStatus {
	return &models.CacheStatus{
		ServiceType: e.ServiceType,
		ConfigType:  e.ConfigType,
		Version:     e.Version,
		CommitHash:  e.CommitHash,
		ItemCount:   e.ItemCount,
		SizeBytes:   e.SizeBytes,
		UpdatedAt:   e.UpdatedAt,
		Stale:       !s.fresh(e.UpdatedAt),
	}
}

// GetStats aggregates across all keys.
func (s *Service) GetStats(ctx context.Context) (*models.CacheStats, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := &models.CacheStats{TotalEntries: len(entries)}
	for _, e := range entries {
		stats.TotalBytes += e.SizeBytes
		if !s.fresh(e.UpdatedAt) {
			stats.StaleEntries++
		}
		u := e.UpdatedAt
		if stats.OldestUpdate == nil || u.Before(*stats.OldestUpdate) {
			stats.OldestUpdate = &u
		}
		if stats.NewestUpdate == nil || u.After(*stats.NewestUpdate) {
			stats.NewestUpdate = &u
		}
	}
	return stats, nil
}

// Delete removes one key.
func (s *Service) Delete(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType) error {
	return s.repo.Delete(ctx, serviceType, configType)
}

// ClearService removes every key for a service type.
func (s *Service) ClearService(ctx context.Context, serviceType common.ServiceType) error {
	return s.repo.DeleteService(ctx, serviceType)
}

// ClearAll removes all entries.
func (s *Service) ClearAll(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}
