package diff

// ChangeType classifies one custom format or group in a diff.
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeRemoved   ChangeType = "removed"
	ChangeModified  ChangeType = "modified"
	ChangeUnchanged ChangeType = "unchanged"
)

// CustomFormatDiff describes how one template custom format relates to the
// latest upstream definition.
type CustomFormatDiff struct {
	TrashID                 string     `json:"trashId"`
	Name                    string     `json:"name"`
	ChangeType              ChangeType `json:"changeType"`
	HasSpecificationChanges bool       `json:"hasSpecificationChanges"`
	CurrentScore            int        `json:"currentScore"`
	NewScore                int        `json:"newScore"`
}

// GroupDiff describes how one template custom-format group relates to the
// latest upstream corpus. Additions are not surfaced at the group level.
type GroupDiff struct {
	TrashID    string     `json:"trashId"`
	Name       string     `json:"name"`
	ChangeType ChangeType `json:"changeType"`
}

// SuggestedAddition is an upstream custom format the template does not carry
// but plausibly should, sourced from a group it already includes or from its
// linked source quality profile.
type SuggestedAddition struct {
	TrashID          string `json:"trashId"`
	Name             string `json:"name"`
	RecommendedScore int    `json:"recommendedScore"`
	Source           string `json:"source"`
}

// SuggestedScoreChange is an advisory score move for a format without an
// explicit override. Formats with a user-set override never appear here.
type SuggestedScoreChange struct {
	TrashID          string `json:"trashId"`
	Name             string `json:"name"`
	CurrentScore     int    `json:"currentScore"`
	RecommendedScore int    `json:"recommendedScore"`
}

// Summary aggregates a TemplateDiffResult.
type Summary struct {
	Added      int    `json:"added"`
	Removed    int    `json:"removed"`
	Modified   int    `json:"modified"`
	Unchanged  int    `json:"unchanged"`
	FromCommit string `json:"fromCommit"`
	ToCommit   string `json:"toCommit"`
}

// TemplateDiffResult is the full structured change set for a template
// against a target commit of the guide corpus.
type TemplateDiffResult struct {
	Summary                Summary                `json:"summary"`
	CustomFormatDiffs      []CustomFormatDiff     `json:"customFormatDiffs"`
	CustomFormatGroupDiffs []GroupDiff            `json:"customFormatGroupDiffs"`
	SuggestedAdditions     []SuggestedAddition    `json:"suggestedAdditions"`
	SuggestedScoreChanges  []SuggestedScoreChange `json:"suggestedScoreChanges"`
	IsHistorical           bool                   `json:"isHistorical"`
}
