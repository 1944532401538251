package shortener

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaevor/go-nanoid"
	"github.com/serroba/link-preview/internal/errx"
)

const (
	hexAlphabet = "0123456789abcdef"

	// DefaultMaxAttempts bounds the collision retries of a single allocation.
	DefaultMaxAttempts = 5
)

// TokenGenerator produces candidate short codes.
type TokenGenerator func() string

// NewHexTokenGenerator returns a generator of CodeLength lowercase hex characters.
func NewHexTokenGenerator() (TokenGenerator, error) {
	gen, err := nanoid.CustomASCII(hexAlphabet, CodeLength)
	if err != nil {
		return nil, err
	}

	return gen, nil
}

// Allocator hands out codes that are unique at the moment they are reserved.
// Uniqueness comes from the store's create-if-absent write, so concurrent
// allocations never share a code.
type Allocator struct {
	store       Reserver
	generate    TokenGenerator
	maxAttempts int
}

// NewAllocator creates an allocator. maxAttempts <= 0 selects DefaultMaxAttempts.
func NewAllocator(store Reserver, generate TokenGenerator, maxAttempts int) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Allocator{
		store:       store,
		generate:    generate,
		maxAttempts: maxAttempts,
	}
}

// Allocate reserves a fresh code, retrying on collisions up to the attempt limit.
func (a *Allocator) Allocate(ctx context.Context) (Code, error) {
	const op = "shortener.Allocator.Allocate"

	for range a.maxAttempts {
		code := Code(a.generate())

		err := a.store.Reserve(ctx, code)
		if err == nil {
			return code, nil
		}

		if !errors.Is(err, ErrCodeExists) {
			return "", errx.E(op, errx.UpstreamFailure, err)
		}
	}

	return "", errx.E(op, errx.AllocationExhausted,
		fmt.Errorf("no free code after %d attempts", a.maxAttempts))
}
