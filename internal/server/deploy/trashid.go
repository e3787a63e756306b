package deploy

import (
	"regexp"

	"github.com/dmitrijs2005/guidesync/internal/server/remote"
)

// MatchSource records which heuristic matched a template format to a remote
// one. Remote systems do not natively store trash ids, so extraction is
// best-effort and callers should treat name-based matches as the weakest.
type MatchSource string

const (
	MatchBySpecField  MatchSource = "trash_id_field"
	MatchByNameSuffix MatchSource = "name_suffix"
	MatchByName       MatchSource = "name"
)

// Renamed formats can make the bracketed-suffix and bare-name fallbacks
// match the wrong remote format. The match source is surfaced on every
// preview item so callers can see which matches rest on weak heuristics.
var nameSuffixRe = regexp.MustCompile(`\[([0-9a-fA-F]{8,32})\]\s*$`)

// ExtractTrashID pulls a trash id out of a remote custom format: first from
// a specification field literally named trash_id/trashId, then from a
// bracketed hex suffix in the name. Returns "" when neither is present so
// the caller can branch to name-based matching explicitly.
func ExtractTrashID(cf *remote.CustomFormat) (string, MatchSource) {
	for _, spec := range cf.Specifications {
		for _, key := range []string{"trash_id", "trashId"} {
			if v, ok := spec.Fields[key]; ok {
				if id, ok := v.(string); ok && id != "" {
					return id, MatchBySpecField
				}
			}
		}
	}

	if m := nameSuffixRe.FindStringSubmatch(cf.Name); m != nil {
		return m[1], MatchByNameSuffix
	}

	return "", ""
}
