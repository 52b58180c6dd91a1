package autoplay

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/filter"
	"github.com/osa030/19voice/internal/infra/config"
)

// optionalFilters are filters enabled only through the filters config section.
var optionalFilters = []string{"duration_limit_filter"}

// NewProviderChainFromConfig creates a provider chain from configuration.
// Without configured providers the chain uses the artist provider alone.
func NewProviderChainFromConfig(cfg *config.Config) (*ProviderChain, error) {
	if len(cfg.Autoplay.Providers) == 0 {
		zlog.Info().Msg("no autoplay providers configured, using artist provider")
		return NewProviderChain([]ProviderWithMetadata{
			{Provider: NewArtistQueryProvider(), DisplayName: "Same artist"},
		}), nil
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Autoplay.Providers {
		var provider QueryProvider
		var err error
		zlog.Debug().Msgf("creating autoplay provider: index=%d type=%s", i+1, pcfg.Type)
		switch pcfg.Type {
		case "artist":
			provider = NewArtistQueryProvider()

		case "lastfm":
			provider, err = NewLastFmQueryProvider(pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("registered autoplay provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewProviderChain(providers), nil
}

// NewFilterChainFromConfig builds the candidate filter chain. The identity,
// title, keyword and history filters always run in that order; optional
// filters follow when enabled.
func NewFilterChainFromConfig(cfg *config.Config) (*filter.Chain, error) {
	keyword := filter.NewKeywordFilter()
	if err := keyword.ValidateConfig(cfg.GetFilterSettings(keyword.Name())); err != nil {
		return nil, errors.Wrapf(err, "filter %s", keyword.Name())
	}
	chain := filter.NewChain(
		filter.NewDuplicateTrackFilter(),
		&filter.TitleMatchFilter{},
		keyword,
		&filter.HistoryFilter{},
	)

	for _, name := range optionalFilters {
		if !cfg.IsFilterEnabled(name) {
			continue
		}
		f, ok := filter.Lookup(name)
		if !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
		if err := f.ValidateConfig(cfg.GetFilterSettings(name)); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("enabled autoplay filter: name=%s", name)
	}

	return chain, nil
}

// Factory creates one Extender per session from shared configuration.
type Factory struct {
	searcher    Searcher
	chain       *ProviderChain
	filters     *filter.Chain
	historySize int
}

// NewFactoryFromConfig builds the provider and filter chains once.
func NewFactoryFromConfig(cfg *config.Config, searcher Searcher) (*Factory, error) {
	chain, err := NewProviderChainFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	filters, err := NewFilterChainFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewFactory(searcher, chain, filters, cfg.Autoplay.HistorySize), nil
}

// NewFactory creates a factory from prepared chains.
func NewFactory(searcher Searcher, chain *ProviderChain, filters *filter.Chain, historySize int) *Factory {
	return &Factory{
		searcher:    searcher,
		chain:       chain,
		filters:     filters,
		historySize: historySize,
	}
}

// New returns a fresh, disabled extender.
func (f *Factory) New() *Extender {
	return NewExtender(f.searcher, f.chain, f.filters, f.historySize)
}
