package source

import (
	"context"

	"github.com/asyrjasalo/augent/pkg/types"
)

// FetchResult is a fetched bundle file tree: the exact revision the
// source resolved to and every universal path with its content.
type FetchResult struct {
	Revision string
	Files    map[string][]byte
}

// Fetcher retrieves a source's file tree. The core never performs
// network or version-control operations itself; remote fetchers are
// supplied by the caller. Fetch must be side-effect free with respect
// to the workspace.
type Fetcher interface {
	Fetch(ctx context.Context, src types.BundleSource) (*FetchResult, error)
}

// Selector chooses which of several discovered bundles to install when
// a source contains more than one installable unit. It is bypassed
// entirely when the caller names an exact subpath.
type Selector interface {
	Select(candidates []types.Bundle) ([]types.Bundle, error)
}

// SelectAll is a Selector that keeps every candidate. Used by
// non-interactive callers and tests.
type SelectAll struct{}

func (SelectAll) Select(candidates []types.Bundle) ([]types.Bundle, error) {
	return candidates, nil
}
