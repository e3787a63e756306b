package diff

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/logging"
	"github.com/dmitrijs2005/guidesync/internal/server/guide"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------- test fakes --------

type fakeCache struct {
	entries map[string]*models.CacheEntry
	sets    int
}

func cacheKeyOf(st common.ServiceType, ct common.ConfigType) string {
	return string(st) + "/" + string(ct)
}

func (f *fakeCache) GetEntry(ctx context.Context, st common.ServiceType, ct common.ConfigType) (*models.CacheEntry, error) {
	e, ok := f.entries[cacheKeyOf(st, ct)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return e, nil
}

func (f *fakeCache) Set(ctx context.Context, st common.ServiceType, ct common.ConfigType, payload []byte, commitHash string) (int64, error) {
	f.sets++
	if f.entries == nil {
		f.entries = map[string]*models.CacheEntry{}
	}
	f.entries[cacheKeyOf(st, ct)] = &models.CacheEntry{
		ServiceType: st, ConfigType: ct, Payload: payload, CommitHash: commitHash,
	}
	return 1, nil
}

type fakeFetcher struct {
	results map[common.ConfigType]*guide.FetchResult
	errs    map[common.ConfigType]error
	commit  string
}

func (f *fakeFetcher) FetchConfigs(ctx context.Context, st common.ServiceType, ct common.ConfigType) (*guide.FetchResult, error) {
	if err := f.errs[ct]; err != nil {
		return nil, err
	}
	if r, ok := f.results[ct]; ok {
		return r, nil
	}
	return &guide.FetchResult{CommitHash: f.commit}, nil
}

func (f *fakeFetcher) FetchLatestCommit(ctx context.Context) (string, error) {
	return f.commit, nil
}

// -------- helpers --------

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// seedCache fills all three config types at the given commit.
func seedCache(t *testing.T, c *fakeCache, commit string,
	formats []models.GuideCustomFormat,
	groups []models.GuideCustomFormatGroup,
	profiles []models.GuideQualityProfile) {
	t.Helper()
	if c.entries == nil {
		c.entries = map[string]*models.CacheEntry{}
	}
	seed := func(ct common.ConfigType, v any) {
		c.entries[cacheKeyOf(common.ServiceRadarr, ct)] = &models.CacheEntry{
			ServiceType: common.ServiceRadarr, ConfigType: ct,
			Payload: mustJSON(t, v), CommitHash: commit,
		}
	}
	seed(common.ConfigCustomFormats, formats)
	seed(common.ConfigCustomFormatGroups, groups)
	seed(common.ConfigQualityProfiles, profiles)
}

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }

func templateWith(t *testing.T, cfg *models.TemplateConfig, commit string) *models.Template {
	t.Helper()
	return &models.Template{
		ID:          "t1",
		Name:        "HD Bluray + WEB",
		ServiceType: common.ServiceRadarr,
		ConfigData:  mustJSON(t, cfg),
		CommitHash:  strPtr(commit),
	}
}

func guideFormat(trashID, name string, score int, specs ...string) models.GuideCustomFormat {
	f := models.GuideCustomFormat{
		TrashID:     trashID,
		Name:        name,
		TrashScores: map[string]int{"default": score},
	}
	for _, s := range specs {
		f.Specifications = append(f.Specifications, json.RawMessage(s))
	}
	return f
}

// -------- tests --------

func TestComputeTemplateDiff_ModifiedUnchangedRemoved(t *testing.T) {
	oldSpec := `{"name":"cond","fields":{"value":"old"}}`
	newSpec := `{"name":"cond","fields":{"value":"new"}}`

	cfg := &models.TemplateConfig{
		CustomFormats: []models.TemplateCustomFormat{
			{TrashID: "cf-mod", Name: "Modified", OriginalConfig: guideFormat("cf-mod", "Modified", 10, oldSpec)},
			{TrashID: "cf-same", Name: "Same", OriginalConfig: guideFormat("cf-same", "Same", 20, oldSpec)},
			{TrashID: "cf-gone", Name: "Gone", OriginalConfig: guideFormat("cf-gone", "Gone", 5, oldSpec)},
		},
	}
	cacheData := &fakeCache{}
	seedCache(t, cacheData, "new-commit",
		[]models.GuideCustomFormat{
			guideFormat("cf-mod", "Modified", 10, newSpec),
			guideFormat("cf-same", "Same", 20, oldSpec),
		}, nil, nil)

	svc := NewService(cacheData, &fakeFetcher{}, testLogger())
	tpl := templateWith(t, cfg, "old-commit")

	result, err := svc.ComputeTemplateDiff(context.Background(), tpl, "new-commit")
	require.NoError(t, err)
	require.False(t, result.IsHistorical)

	byID := map[string]CustomFormatDiff{}
	for _, d := range result.CustomFormatDiffs {
		byID[d.TrashID] = d
	}

	assert.Equal(t, ChangeModified, byID["cf-mod"].ChangeType)
	assert.True(t, byID["cf-mod"].HasSpecificationChanges)
	assert.Equal(t, ChangeUnchanged, byID["cf-same"].ChangeType)
	assert.False(t, byID["cf-same"].HasSpecificationChanges)
	assert.Equal(t, ChangeRemoved, byID["cf-gone"].ChangeType)

	assert.Equal(t, 1, result.Summary.Modified)
	assert.Equal(t, 1, result.Summary.Unchanged)
	assert.Equal(t, 1, result.Summary.Removed)
	assert.Equal(t, "old-commit", result.Summary.FromCommit)
	assert.Equal(t, "new-commit", result.Summary.ToCommit)
}

func TestComputeTemplateDiff_ScoreSuggestions_OverridesAreSticky(t *testing.T) {
	// A: score 5 via score set, no override. B: override 20. Upstream now
	// recommends A=8, B=15. Only A may be suggested.
	spec := `{"name":"c"}`
	cfg := &models.TemplateConfig{
		CustomFormats: []models.TemplateCustomFormat{
			{TrashID: "cf-a", Name: "A", OriginalConfig: guideFormat("cf-a", "A", 5, spec)},
			{TrashID: "cf-b", Name: "B", ScoreOverride: intPtr(20), OriginalConfig: guideFormat("cf-b", "B", 10, spec)},
		},
	}
	cacheData := &fakeCache{}
	seedCache(t, cacheData, "head",
		[]models.GuideCustomFormat{
			guideFormat("cf-a", "A", 8, spec),
			guideFormat("cf-b", "B", 15, spec),
		}, nil, nil)

	svc := NewService(cacheData, &fakeFetcher{}, testLogger())
	result, err := svc.ComputeTemplateDiff(context.Background(), templateWith(t, cfg, "base"), "head")
	require.NoError(t, err)

	require.Len(t, result.SuggestedScoreChanges, 1)
	sc := result.SuggestedScoreChanges[0]
	assert.Equal(t, "cf-a", sc.TrashID)
	assert.Equal(t, 5, sc.CurrentScore)
	assert.Equal(t, 8, sc.RecommendedScore)
}

func TestComputeTemplateDiff_SuggestedAdditions(t *testing.T) {
	spec := `{"name":"c"}`
	cfg := &models.TemplateConfig{
		CustomFormats: []models.TemplateCustomFormat{
			{TrashID: "cf-have", Name: "Have", OriginalConfig: guideFormat("cf-have", "Have", 0, spec)},
		},
		CustomFormatGroups: []models.TemplateCustomFormatGroup{
			{TrashID: "grp-1", Name: "Unwanted"},
		},
	}
	cacheData := &fakeCache{}
	seedCache(t, cacheData, "head",
		[]models.GuideCustomFormat{
			guideFormat("cf-have", "Have", 0, spec),
			guideFormat("cf-grp", "FromGroup", 25, spec),
			guideFormat("cf-qp", "FromProfile", -10, spec),
		},
		[]models.GuideCustomFormatGroup{
			{TrashID: "grp-1", Name: "Unwanted", CustomFormats: []models.GuideGroupMember{
				{TrashID: "cf-have", Name: "Have"},
				{TrashID: "cf-grp", Name: "FromGroup"},
				{TrashID: "cf-missing", Name: "NotInCorpus"},
			}},
		},
		[]models.GuideQualityProfile{
			{TrashID: "qp-1", Name: "HD", FormatItems: map[string]string{
				"FromProfile": "cf-qp",
				"FromGroup":   "cf-grp", // already suggested via the group
			}},
		})

	svc := NewService(cacheData, &fakeFetcher{}, testLogger())
	tpl := templateWith(t, cfg, "base")
	tpl.SourceQualityProfileTrashID = strPtr("qp-1")

	result, err := svc.ComputeTemplateDiff(context.Background(), tpl, "head")
	require.NoError(t, err)

	require.Len(t, result.SuggestedAdditions, 2)
	assert.Equal(t, "cf-grp", result.SuggestedAdditions[0].TrashID)
	assert.Equal(t, 25, result.SuggestedAdditions[0].RecommendedScore)
	assert.Equal(t, "group:grp-1", result.SuggestedAdditions[0].Source)
	assert.Equal(t, "cf-qp", result.SuggestedAdditions[1].TrashID)
	assert.Equal(t, -10, result.SuggestedAdditions[1].RecommendedScore)
	assert.Equal(t, "quality_profile:qp-1", result.SuggestedAdditions[1].Source)
}

func TestComputeTemplateDiff_GroupDiffs(t *testing.T) {
	cfg := &models.TemplateConfig{
		CustomFormatGroups: []models.TemplateCustomFormatGroup{
			{TrashID: "grp-keep", Name: "Keep"},
			{TrashID: "grp-gone", Name: "Gone"},
		},
	}
	cacheData := &fakeCache{}
	seedCache(t, cacheData, "head", nil,
		[]models.GuideCustomFormatGroup{{TrashID: "grp-keep", Name: "Keep"}}, nil)

	svc := NewService(cacheData, &fakeFetcher{}, testLogger())
	result, err := svc.ComputeTemplateDiff(context.Background(), templateWith(t, cfg, "base"), "head")
	require.NoError(t, err)

	require.Len(t, result.CustomFormatGroupDiffs, 2)
	assert.Equal(t, ChangeUnchanged, result.CustomFormatGroupDiffs[0].ChangeType)
	assert.Equal(t, ChangeRemoved, result.CustomFormatGroupDiffs[1].ChangeType)
}

func TestComputeTemplateDiff_Deterministic(t *testing.T) {
	spec := `{"name":"c"}`
	cfg := &models.TemplateConfig{
		CustomFormats: []models.TemplateCustomFormat{
			{TrashID: "cf-1", Name: "One", OriginalConfig: guideFormat("cf-1", "One", 1, spec)},
		},
		CustomFormatGroups: []models.TemplateCustomFormatGroup{{TrashID: "g", Name: "G"}},
	}
	cacheData := &fakeCache{}
	seedCache(t, cacheData, "head",
		[]models.GuideCustomFormat{guideFormat("cf-1", "One", 3, spec)},
		[]models.GuideCustomFormatGroup{{TrashID: "g", Name: "G"}},
		[]models.GuideQualityProfile{{TrashID: "qp", FormatItems: map[string]string{"a": "x", "b": "y", "c": "z"}}})

	svc := NewService(cacheData, &fakeFetcher{}, testLogger())
	tpl := templateWith(t, cfg, "base")
	tpl.SourceQualityProfileTrashID = strPtr("qp")

	first, err := svc.ComputeTemplateDiff(context.Background(), tpl, "head")
	require.NoError(t, err)
	second, err := svc.ComputeTemplateDiff(context.Background(), tpl, "head")
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("diff is not deterministic (-first +second):\n%s", diff)
	}
}

func TestComputeTemplateDiff_HistoricalReconstruction(t *testing.T) {
	tpl := &models.Template{
		ID: "t1", ServiceType: common.ServiceRadarr,
		ConfigData: []byte(`{}`),
		CommitHash: strPtr("head"),
		ChangeLog: []models.ChangeEvent{
			{Kind: models.EventAutoSync, AutoSync: &models.AutoSyncEvent{
				FromCommitHash: "base", ToCommitHash: "head",
				Added:   []models.ChangedFormat{{TrashID: "cf-new", Name: "New"}},
				Removed: []models.ChangedFormat{{TrashID: "cf-old", Name: "Old"}},
				Updated: []models.ChangedFormat{{TrashID: "cf-upd", Name: "Upd"}},
				ScoreChanges: []models.ScoreChange{
					{TrashID: "cf-sc", Name: "Sc", OldScore: 5, NewScore: 8},
				},
			}},
		},
	}

	svc := NewService(&fakeCache{}, &fakeFetcher{}, testLogger())
	result, err := svc.ComputeTemplateDiff(context.Background(), tpl, "head")
	require.NoError(t, err)

	assert.True(t, result.IsHistorical)
	assert.Equal(t, 1, result.Summary.Added)
	assert.Equal(t, 1, result.Summary.Removed)
	assert.Equal(t, 1, result.Summary.Modified)
	assert.Equal(t, "base", result.Summary.FromCommit)
	require.Len(t, result.SuggestedScoreChanges, 1)
	assert.Equal(t, 8, result.SuggestedScoreChanges[0].RecommendedScore)

	upd := result.CustomFormatDiffs[2]
	assert.Equal(t, ChangeModified, upd.ChangeType)
	assert.True(t, upd.HasSpecificationChanges)
}

func TestComputeTemplateDiff_SameCommitNoChangelogEntry(t *testing.T) {
	tpl := &models.Template{
		ID: "t1", ServiceType: common.ServiceRadarr,
		ConfigData: []byte(`{}`),
		CommitHash: strPtr("head"),
	}

	svc := NewService(&fakeCache{}, &fakeFetcher{}, testLogger())
	result, err := svc.ComputeTemplateDiff(context.Background(), tpl, "head")
	require.NoError(t, err)

	assert.False(t, result.IsHistorical)
	assert.Empty(t, result.CustomFormatDiffs)
	assert.Equal(t, "head", result.Summary.ToCommit)
}

func TestComputeTemplateDiff_StaleCacheTriggersRefetch(t *testing.T) {
	spec := `{"name":"c"}`
	cacheData := &fakeCache{}
	seedCache(t, cacheData, "stale-commit", nil, nil, nil)

	fetcher := &fakeFetcher{
		commit: "head",
		results: map[common.ConfigType]*guide.FetchResult{
			common.ConfigCustomFormats: {Items: [][]byte{mustJSON(t, guideFormat("cf-1", "One", 1, spec))}, CommitHash: "head"},
		},
	}

	svc := NewService(cacheData, fetcher, testLogger())
	cfg := &models.TemplateConfig{
		CustomFormats: []models.TemplateCustomFormat{
			{TrashID: "cf-1", Name: "One", OriginalConfig: guideFormat("cf-1", "One", 1, spec)},
		},
	}
	result, err := svc.ComputeTemplateDiff(context.Background(), templateWith(t, cfg, "base"), "head")
	require.NoError(t, err)

	assert.Equal(t, 3, cacheData.sets, "all three config types refetched")
	require.Len(t, result.CustomFormatDiffs, 1)
	assert.Equal(t, ChangeUnchanged, result.CustomFormatDiffs[0].ChangeType)
}

func TestComputeTemplateDiff_FetchFailureNamesConfigType(t *testing.T) {
	fetcher := &fakeFetcher{
		errs: map[common.ConfigType]error{
			common.ConfigCustomFormatGroups: errors.New("upstream down"),
		},
		commit: "head",
	}
	svc := NewService(&fakeCache{}, fetcher, testLogger())

	_, err := svc.ComputeTemplateDiff(context.Background(),
		templateWith(t, &models.TemplateConfig{}, "base"), "head")
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(common.ConfigCustomFormatGroups))
}

func TestComputeTemplateDiff_CorruptConfigIsFatal(t *testing.T) {
	cacheData := &fakeCache{}
	seedCache(t, cacheData, "head", nil, nil, nil)
	svc := NewService(cacheData, &fakeFetcher{}, testLogger())

	tpl := &models.Template{
		ID: "t-corrupt", ServiceType: common.ServiceRadarr,
		ConfigData: []byte(`{"customFormats":`),
		CommitHash: strPtr("base"),
	}

	_, err := svc.ComputeTemplateDiff(context.Background(), tpl, "head")
	var corrupt *common.CorruptDataError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "t-corrupt", corrupt.TemplateID)
}
