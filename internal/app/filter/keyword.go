package filter

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/domain/track"
)

// DefaultDenyKeywords are title fragments that mark tutorials, radio streams
// and other non-music uploads.
var DefaultDenyKeywords = []string{
	"how to",
	"tutorial",
	"guide",
	"tips",
	"tricks",
	"radio concierto",
	"emisión en directo",
	"live radio",
	"internet radio",
	"licensing",
	"keyfob",
	"volvo",
	"things you didn't know",
	"cassette - radio",
}

// KeywordConfig represents the configuration for KeywordFilter.
type KeywordConfig struct {
	Keywords []string `yaml:"keywords" mapstructure:"keywords" validate:"dive,required"`
}

// KeywordFilter rejects candidates whose title contains a denied keyword.
type KeywordFilter struct {
	autoplayOnly
	keywords []string
}

// NewKeywordFilter creates a keyword filter with the default deny list.
func NewKeywordFilter() *KeywordFilter {
	return &KeywordFilter{keywords: lowerAll(DefaultDenyKeywords)}
}

func (f *KeywordFilter) Name() string {
	return "keyword_filter"
}

func (f *KeywordFilter) Description() string {
	return "Rejects non-music uploads by title keyword"
}

func (f *KeywordFilter) ReturnCodes() []string {
	return []string{"non_music"}
}

func (f *KeywordFilter) ValidateConfig(settings map[string]any) error {
	var config KeywordConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &config,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	// An absent list keeps the built-in deny list
	if len(config.Keywords) > 0 {
		f.keywords = lowerAll(config.Keywords)
	}
	zlog.Info().Msgf("keyword filter config: keywords=%d", len(f.keywords))
	return nil
}

func (f *KeywordFilter) Check(ctx context.Context, candidate track.Track, fc Context) Result {
	title := strings.ToLower(candidate.Title)
	for _, kw := range f.keywords {
		if strings.Contains(title, kw) {
			return Reject("non_music")
		}
	}
	return Accept()
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

func init() {
	Register("keyword_filter", func() Filter {
		return NewKeywordFilter()
	})
}
