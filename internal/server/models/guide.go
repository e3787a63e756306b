package models

import "encoding/json"

// GuideCustomFormat is an upstream custom-format definition as published by
// the guide corpus. TrashScores maps score-set names to recommended scores.
type GuideCustomFormat struct {
	TrashID        string            `json:"trash_id"`
	Name           string            `json:"name"`
	TrashScores    map[string]int    `json:"trash_scores,omitempty"`
	Specifications []json.RawMessage `json:"specifications"`
}

// DefaultScoreSet is consulted when a profile names no score set, or names
// one the format does not carry.
const DefaultScoreSet = "default"

// RecommendedScore resolves the upstream-recommended score for the given
// score set: named set first, then the default set, else 0.
func (f *GuideCustomFormat) RecommendedScore(scoreSet string) int {
	if f.TrashScores == nil {
		return 0
	}
	if scoreSet != "" {
		if s, ok := f.TrashScores[scoreSet]; ok {
			return s
		}
	}
	if s, ok := f.TrashScores[DefaultScoreSet]; ok {
		return s
	}
	return 0
}

// GuideGroupMember is a single custom format referenced by a group.
type GuideGroupMember struct {
	TrashID  string `json:"trash_id"`
	Name     string `json:"name"`
	Required bool   `json:"required,omitempty"`
}

// GuideCustomFormatGroup is an upstream bundle of related custom formats.
type GuideCustomFormatGroup struct {
	TrashID       string             `json:"trash_id"`
	Name          string             `json:"name"`
	CustomFormats []GuideGroupMember `json:"custom_formats"`
}

// GuideQualityProfile is an upstream quality-profile definition.
// FormatItems maps custom-format names to trash ids.
type GuideQualityProfile struct {
	TrashID       string            `json:"trash_id"`
	Name          string            `json:"name"`
	TrashScoreSet string            `json:"trash_score_set,omitempty"`
	FormatItems   map[string]string `json:"formatItems,omitempty"`
}
