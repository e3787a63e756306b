package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeEventKind tags a changelog entry. The changelog is a tagged-variant
// log; unknown kinds or kind/payload mismatches are rejected by ParseChangeLog
// rather than carried along as untyped data.
type ChangeEventKind string

const (
	EventCreated    ChangeEventKind = "created"
	EventManualEdit ChangeEventKind = "manual_edit"
	EventAutoSync   ChangeEventKind = "auto_sync"
	EventDeployed   ChangeEventKind = "deployed"
	EventDeleted    ChangeEventKind = "deleted"
)

// ChangeEvent is a single template changelog entry. AutoSync is present
// exactly when Kind == EventAutoSync.
type ChangeEvent struct {
	Kind        ChangeEventKind `json:"kind"`
	At          time.Time       `json:"at"`
	Description string          `json:"description,omitempty"`
	AutoSync    *AutoSyncEvent  `json:"autoSync,omitempty"`
}

// AutoSyncEvent records what an auto-sync advance changed, keyed by the
// commit range it covered. Historical diff reconstruction reads these lists
// back instead of recomputing against the cache.
type AutoSyncEvent struct {
	FromCommitHash string          `json:"fromCommitHash"`
	ToCommitHash   string          `json:"toCommitHash"`
	Added          []ChangedFormat `json:"added,omitempty"`
	Removed        []ChangedFormat `json:"removed,omitempty"`
	Updated        []ChangedFormat `json:"updated,omitempty"`
	ScoreChanges   []ScoreChange   `json:"scoreChanges,omitempty"`
}

// ChangedFormat identifies a custom format touched by a sync.
type ChangedFormat struct {
	TrashID string `json:"trashId"`
	Name    string `json:"name"`
}

// ScoreChange records an effective-score move applied by a sync.
type ScoreChange struct {
	TrashID  string `json:"trashId"`
	Name     string `json:"name"`
	OldScore int    `json:"oldScore"`
	NewScore int    `json:"newScore"`
}

var validEventKinds = map[ChangeEventKind]struct{}{
	EventCreated:    {},
	EventManualEdit: {},
	EventAutoSync:   {},
	EventDeployed:   {},
	EventDeleted:    {},
}

// ParseChangeLog decodes and validates a stored changelog. Malformed entries
// make the whole log invalid; callers must treat the error as corrupt data,
// not as an empty history.
func ParseChangeLog(raw []byte) ([]ChangeEvent, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var events []ChangeEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("changelog decode: %w", err)
	}
	for i, ev := range events {
		if _, ok := validEventKinds[ev.Kind]; !ok {
			return nil, fmt.Errorf("changelog entry %d: unknown kind %q", i, ev.Kind)
		}
		if ev.Kind == EventAutoSync {
			if ev.AutoSync == nil {
				return nil, fmt.Errorf("changelog entry %d: auto_sync without payload", i)
			}
			if ev.AutoSync.ToCommitHash == "" {
				return nil, fmt.Errorf("changelog entry %d: auto_sync without target commit", i)
			}
		} else if ev.AutoSync != nil {
			return nil, fmt.Errorf("changelog entry %d: %s carries auto_sync payload", i, ev.Kind)
		}
	}
	return events, nil
}

// LatestAutoSync returns the most recent auto-sync event whose target commit
// equals toCommit, or nil when the log holds none.
func LatestAutoSync(events []ChangeEvent, toCommit string) *AutoSyncEvent {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == EventAutoSync && events[i].AutoSync.ToCommitHash == toCommit {
			return events[i].AutoSync
		}
	}
	return nil
}
