// Package diff implements the template diff engine: comparing a template's
// saved configuration against the latest upstream definitions, or
// reconstructing a historical diff from the template's changelog when the
// template is already at the target commit.
package diff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/logging"
	"github.com/dmitrijs2005/guidesync/internal/server/guide"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
)

// CacheManager is the slice of the cache service the diff engine needs.
type CacheManager interface {
	GetEntry(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType) (*models.CacheEntry, error)
	Set(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType, payload []byte, commitHash string) (int64, error)
}

// Service computes template diffs. It is read-only with respect to templates
// and safely concurrent with previews and unrelated deployments.
type Service struct {
	cache   CacheManager
	fetcher guide.Fetcher
	logger  logging.Logger
}

func NewService(cache CacheManager, fetcher guide.Fetcher, logger logging.Logger) *Service {
	return &Service{cache: cache, fetcher: fetcher, logger: logger}
}

// ComputeTemplateDiff produces the structured change set for the template
// against targetCommit. Given identical template config and cache snapshot
// the computation is pure.
func (s *Service) ComputeTemplateDiff(ctx context.Context, tpl *models.Template, targetCommit string) (*TemplateDiffResult, error) {
	currentCommit := ""
	if tpl.CommitHash != nil {
		currentCommit = *tpl.CommitHash
	}

	// Already at the target: no upstream delta exists. Reconstruct from the
	// changelog instead of recomputing against data that, by definition,
	// has not changed.
	if currentCommit == targetCommit {
		return s.historicalDiff(tpl, targetCommit), nil
	}

	snap, err := s.ensureCache(ctx, tpl.ServiceType, targetCommit)
	if err != nil {
		return nil, err
	}

	cfg, err := tpl.ParseConfig()
	if err != nil {
		return nil, err
	}

	return computeDiff(cfg, tpl.SourceQualityProfileTrashID, snap, currentCommit, targetCommit), nil
}

func (s *Service) historicalDiff(tpl *models.Template, targetCommit string) *TemplateDiffResult {
	result := &TemplateDiffResult{
		Summary: Summary{FromCommit: targetCommit, ToCommit: targetCommit},
	}

	ev := models.LatestAutoSync(tpl.ChangeLog, targetCommit)
	if ev == nil {
		return result
	}

	result.IsHistorical = true
	result.Summary.FromCommit = ev.FromCommitHash

	for _, f := range ev.Added {
		result.CustomFormatDiffs = append(result.CustomFormatDiffs, CustomFormatDiff{
			TrashID: f.TrashID, Name: f.Name, ChangeType: ChangeAdded,
		})
		result.Summary.Added++
	}
	for _, f := range ev.Removed {
		result.CustomFormatDiffs = append(result.CustomFormatDiffs, CustomFormatDiff{
			TrashID: f.TrashID, Name: f.Name, ChangeType: ChangeRemoved,
		})
		result.Summary.Removed++
	}
	for _, f := range ev.Updated {
		result.CustomFormatDiffs = append(result.CustomFormatDiffs, CustomFormatDiff{
			TrashID: f.TrashID, Name: f.Name, ChangeType: ChangeModified,
			HasSpecificationChanges: true,
		})
		result.Summary.Modified++
	}
	for _, sc := range ev.ScoreChanges {
		result.SuggestedScoreChanges = append(result.SuggestedScoreChanges, SuggestedScoreChange{
			TrashID: sc.TrashID, Name: sc.Name,
			CurrentScore: sc.OldScore, RecommendedScore: sc.NewScore,
		})
	}
	return result
}

// snapshot is the decoded latest upstream state for one service type.
type snapshot struct {
	formats  []models.GuideCustomFormat
	groups   []models.GuideCustomFormatGroup
	profiles []models.GuideQualityProfile
}

// ensureCache guarantees the cache holds all three config types at
// targetCommit, refetching through the upstream fetcher where the cached
// commit differs. A fetch failure aborts with an error naming the config
// type that failed.
func (s *Service) ensureCache(ctx context.Context, serviceType common.ServiceType, targetCommit string) (*snapshot, error) {
	snap := &snapshot{}
	for _, configType := range common.AllConfigTypes {
		payload, err := s.ensureEntry(ctx, serviceType, configType, targetCommit)
		if err != nil {
			return nil, fmt.Errorf("refreshing %s/%s: %w", serviceType, configType, err)
		}
		switch configType {
		case common.ConfigCustomFormats:
			err = json.Unmarshal(payload, &snap.formats)
		case common.ConfigCustomFormatGroups:
			err = json.Unmarshal(payload, &snap.groups)
		case common.ConfigQualityProfiles:
			err = json.Unmarshal(payload, &snap.profiles)
		}
		if err != nil {
			return nil, fmt.Errorf("decoding cached %s/%s: %w", serviceType, configType, err)
		}
	}
	return snap, nil
}

func (s *Service) ensureEntry(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType, targetCommit string) ([]byte, error) {
	entry, err := s.cache.GetEntry(ctx, serviceType, configType)
	if err == nil && entry.CommitHash == targetCommit {
		return entry.Payload, nil
	}
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	fetched, err := s.fetcher.FetchConfigs(ctx, serviceType, configType)
	if err != nil {
		return nil, fmt.Errorf("upstream fetch: %w", err)
	}

	items := make([]json.RawMessage, 0, len(fetched.Items))
	for _, it := range fetched.Items {
		items = append(items, json.RawMessage(it))
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}

	if _, err := s.cache.Set(ctx, serviceType, configType, payload, fetched.CommitHash); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "cache refreshed for diff",
		"service", serviceType, "config", configType, "commit", fetched.CommitHash)
	return payload, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}

// computeDiff is the pure comparison core.
func computeDiff(cfg *models.TemplateConfig, sourceProfileTrashID *string, snap *snapshot, fromCommit, toCommit string) *TemplateDiffResult {
	result := &TemplateDiffResult{
		Summary: Summary{FromCommit: fromCommit, ToCommit: toCommit},
	}

	scoreSet := ""
	if cfg.QualityProfile != nil {
		scoreSet = cfg.QualityProfile.ScoreSet
	}

	templateFormats := map[string]*models.TemplateCustomFormat{}
	for i := range cfg.CustomFormats {
		f := &cfg.CustomFormats[i]
		templateFormats[f.TrashID] = f
	}
	templateGroups := map[string]*models.TemplateCustomFormatGroup{}
	for i := range cfg.CustomFormatGroups {
		g := &cfg.CustomFormatGroups[i]
		templateGroups[g.TrashID] = g
	}
	latestFormats := map[string]*models.GuideCustomFormat{}
	for i := range snap.formats {
		f := &snap.formats[i]
		latestFormats[f.TrashID] = f
	}
	latestGroups := map[string]*models.GuideCustomFormatGroup{}
	for i := range snap.groups {
		g := &snap.groups[i]
		latestGroups[g.TrashID] = g
	}
	latestProfiles := map[string]*models.GuideQualityProfile{}
	for i := range snap.profiles {
		p := &snap.profiles[i]
		latestProfiles[p.TrashID] = p
	}

	// Template formats vs latest: modified/unchanged/removed. Upstream-only
	// formats are never "added" here; they surface as suggestions below.
	for i := range cfg.CustomFormats {
		tf := &cfg.CustomFormats[i]
		currentScore := effectiveScore(tf, scoreSet)

		latest, ok := latestFormats[tf.TrashID]
		if !ok {
			result.CustomFormatDiffs = append(result.CustomFormatDiffs, CustomFormatDiff{
				TrashID: tf.TrashID, Name: tf.Name, ChangeType: ChangeRemoved,
				CurrentScore: currentScore,
			})
			result.Summary.Removed++
			continue
		}

		recommended := latest.RecommendedScore(scoreSet)
		specsChanged := !SpecsEqual(tf.OriginalConfig.Specifications, latest.Specifications)

		d := CustomFormatDiff{
			TrashID: tf.TrashID, Name: tf.Name,
			CurrentScore: currentScore, NewScore: recommended,
		}
		if specsChanged {
			d.ChangeType = ChangeModified
			d.HasSpecificationChanges = true
			result.Summary.Modified++
		} else {
			d.ChangeType = ChangeUnchanged
			result.Summary.Unchanged++
		}
		result.CustomFormatDiffs = append(result.CustomFormatDiffs, d)

		// Explicit overrides are sticky: never suggest them away.
		if tf.ScoreOverride == nil && currentScore != recommended {
			result.SuggestedScoreChanges = append(result.SuggestedScoreChanges, SuggestedScoreChange{
				TrashID: tf.TrashID, Name: tf.Name,
				CurrentScore: currentScore, RecommendedScore: recommended,
			})
		}
	}

	// Additions are suggested from groups the template already includes...
	suggested := map[string]bool{}
	for i := range cfg.CustomFormatGroups {
		tg := &cfg.CustomFormatGroups[i]
		lg, ok := latestGroups[tg.TrashID]
		if !ok {
			continue
		}
		for _, member := range lg.CustomFormats {
			if _, have := templateFormats[member.TrashID]; have || suggested[member.TrashID] {
				continue
			}
			lf, ok := latestFormats[member.TrashID]
			if !ok {
				continue
			}
			suggested[member.TrashID] = true
			result.SuggestedAdditions = append(result.SuggestedAdditions, SuggestedAddition{
				TrashID: lf.TrashID, Name: lf.Name,
				RecommendedScore: lf.RecommendedScore(scoreSet),
				Source:           "group:" + tg.TrashID,
			})
		}
	}

	// ...and from the linked source quality profile's format items.
	if sourceProfileTrashID != nil {
		if profile, ok := latestProfiles[*sourceProfileTrashID]; ok {
			names := make([]string, 0, len(profile.FormatItems))
			for name := range profile.FormatItems {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				trashID := profile.FormatItems[name]
				if _, have := templateFormats[trashID]; have || suggested[trashID] {
					continue
				}
				lf, ok := latestFormats[trashID]
				if !ok {
					continue
				}
				suggested[trashID] = true
				result.SuggestedAdditions = append(result.SuggestedAdditions, SuggestedAddition{
					TrashID: lf.TrashID, Name: lf.Name,
					RecommendedScore: lf.RecommendedScore(scoreSet),
					Source:           "quality_profile:" + profile.TrashID,
				})
			}
		}
	}

	// Group diffs mirror the CF policy: no group-level additions.
	for i := range cfg.CustomFormatGroups {
		tg := &cfg.CustomFormatGroups[i]
		if _, ok := latestGroups[tg.TrashID]; ok {
			result.CustomFormatGroupDiffs = append(result.CustomFormatGroupDiffs, GroupDiff{
				TrashID: tg.TrashID, Name: tg.Name, ChangeType: ChangeUnchanged,
			})
		} else {
			result.CustomFormatGroupDiffs = append(result.CustomFormatGroupDiffs, GroupDiff{
				TrashID: tg.TrashID, Name: tg.Name, ChangeType: ChangeRemoved,
			})
		}
	}

	return result
}

// effectiveScore resolves a template format's current score: explicit
// override first, then the named score-set lookup, else 0.
func effectiveScore(f *models.TemplateCustomFormat, scoreSet string) int {
	if f.ScoreOverride != nil {
		return *f.ScoreOverride
	}
	return f.OriginalConfig.RecommendedScore(scoreSet)
}
