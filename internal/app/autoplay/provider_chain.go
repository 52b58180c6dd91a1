package autoplay

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/domain/track"
)

// QueryWithSource represents a search query with its source provider info.
type QueryWithSource struct {
	Query       string
	DisplayName string
}

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    QueryProvider
	DisplayName string
}

// ProviderChain collects queries from multiple providers in order.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// Queries retrieves queries from all providers, keeping provider order and
// dropping duplicates. A failing provider is skipped.
func (c *ProviderChain) Queries(ctx context.Context, seed track.Track) ([]QueryWithSource, error) {
	var all []QueryWithSource
	seen := make(map[string]bool)

	for i, pm := range c.providers {
		zlog.Debug().Msgf("trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		queries, err := pm.Provider.Queries(ctx, seed)
		if err != nil {
			zlog.Warn().Msgf("provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			continue
		}

		for _, q := range queries {
			if q == "" || seen[q] {
				continue
			}
			seen[q] = true
			all = append(all, QueryWithSource{Query: q, DisplayName: pm.DisplayName})
		}
	}

	if len(all) == 0 {
		return nil, errors.New("all providers failed to return queries")
	}

	return all, nil
}

// Name returns the chain name.
func (c *ProviderChain) Name() string {
	return "provider_chain"
}
