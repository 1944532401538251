package shortener

import (
	"context"
	"errors"
	"fmt"

	"github.com/serroba/link-preview/internal/errx"
)

var errMalformedCode = errors.New("malformed short code")

// Resolver looks records up by short code.
type Resolver struct {
	store RecordGetter
}

// NewResolver creates a resolver reading from store.
func NewResolver(store RecordGetter) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the record for code. Malformed codes are rejected before the
// store is touched.
func (r *Resolver) Resolve(ctx context.Context, code string) (*Record, error) {
	const op = "shortener.Resolver.Resolve"

	c := Code(code)
	if !c.Valid() {
		return nil, errx.E(op, errx.InvalidArgument, errMalformedCode)
	}

	record, err := r.store.Get(ctx, c)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errx.E(op, errx.NotFound, fmt.Errorf("code %s: %w", c, err))
		}

		return nil, errx.E(op, errx.UpstreamFailure, err)
	}

	return record, nil
}
