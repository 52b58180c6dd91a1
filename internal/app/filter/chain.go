package filter

import (
	"context"

	"github.com/osa030/19voice/internal/domain/track"
)

// Chain runs candidate filters in a fixed order and stops at the first
// rejection. Filters that do not apply to the candidate's requester type
// are passed over, so user requests go through untouched.
type Chain struct {
	filters []Filter
}

// NewChain creates a chain running filters in the given order.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Add appends f to the end of the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute checks candidate against each applicable filter. A rejection
// carries the name of the filter that produced it.
func (c *Chain) Execute(ctx context.Context, candidate track.Track, fc Context) Result {
	for _, f := range c.filters {
		if !f.AppliesTo(candidate.Requester.Type) {
			continue
		}
		if r := f.Check(ctx, candidate, fc); !r.Accepted {
			r.Filter = f.Name()
			return r
		}
	}
	return Accept()
}

// Filters returns the filters in execution order.
func (c *Chain) Filters() []Filter {
	return c.filters
}
