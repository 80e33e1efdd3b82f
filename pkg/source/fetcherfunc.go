package source

import (
	"context"

	"github.com/asyrjasalo/augent/pkg/types"
)

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, src types.BundleSource) (*FetchResult, error)

func (f FetcherFunc) Fetch(ctx context.Context, src types.BundleSource) (*FetchResult, error) {
	return f(ctx, src)
}
