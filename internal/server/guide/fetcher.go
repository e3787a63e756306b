// Package guide defines the upstream-fetcher capability this core consumes.
// The actual fetcher (guide-repo clone, HTTP mirror, ...) is collaborator
// code injected at construction; the core never reimplements it.
package guide

import (
	"context"

	"github.com/dmitrijs2005/guidesync/internal/common"
)

// FetchResult is one config type's worth of upstream definitions at a
// specific commit of the guide corpus.
type FetchResult struct {
	Items      [][]byte
	CommitHash string
}

// Fetcher retrieves current upstream guide definitions.
type Fetcher interface {
	// FetchConfigs returns the raw definition documents for the given
	// service/config type together with the corpus commit they came from.
	FetchConfigs(ctx context.Context, serviceType common.ServiceType, configType common.ConfigType) (*FetchResult, error)

	// FetchLatestCommit returns the current head commit of the guide corpus.
	FetchLatestCommit(ctx context.Context) (string, error)
}
