package fetcher

import "context"

// CatIDResolver maps an old-wrapper token id to the canonical hex cat id.
type CatIDResolver interface {
	ResolveCatID(ctx context.Context, wrapperTokenID uint64) (string, error)
}
