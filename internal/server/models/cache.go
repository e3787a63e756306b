package models

import (
	"time"

	"github.com/dmitrijs2005/guidesync/internal/common"
)

// CacheEntry is one versioned blob of upstream definitions, keyed by
// (service type, config type). Version increments by exactly 1 on every
// successful set for the key.
type CacheEntry struct {
	ServiceType common.ServiceType `json:"serviceType"`
	ConfigType  common.ConfigType  `json:"configType"`
	Payload     []byte             `json:"-"`
	Compressed  bool               `json:"-"`
	Version     int64              `json:"version"`
	CommitHash  string             `json:"commitHash"`
	ItemCount   int                `json:"itemCount"`
	SizeBytes   int64              `json:"sizeBytes"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// CacheStatus is the externally visible state of one cache key.
type CacheStatus struct {
	ServiceType common.ServiceType `json:"serviceType"`
	ConfigType  common.ConfigType  `json:"configType"`
	Version     int64              `json:"version"`
	CommitHash  string             `json:"commitHash"`
	ItemCount   int                `json:"itemCount"`
	SizeBytes   int64              `json:"sizeBytes"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	Stale       bool               `json:"stale"`
}

// CacheStats aggregates across all cache keys.
type CacheStats struct {
	TotalEntries int        `json:"totalEntries"`
	StaleEntries int        `json:"staleEntries"`
	TotalBytes   int64      `json:"totalBytes"`
	OldestUpdate *time.Time `json:"oldestUpdate,omitempty"`
	NewestUpdate *time.Time `json:"newestUpdate,omitempty"`
}
