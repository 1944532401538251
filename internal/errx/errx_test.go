package errx_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/serroba/link-preview/internal/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE(t *testing.T) {
	t.Run("returns nil for nil error", func(t *testing.T) {
		assert.NoError(t, errx.E("op", errx.NotFound, nil))
	})

	t.Run("wraps error with op and kind", func(t *testing.T) {
		cause := errors.New("boom")
		err := errx.E("shortener.Resolve", errx.NotFound, cause)

		require.Error(t, err)
		assert.Equal(t, "shortener.Resolve: boom", err.Error())
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, errx.NotFound, errx.KindOf(err))
		assert.Equal(t, "shortener.Resolve", errx.OpOf(err))
	})

	t.Run("kind survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", errx.E("op", errx.DataCorruption, errors.New("dup")))

		assert.Equal(t, errx.DataCorruption, errx.KindOf(err))
	})

	t.Run("outermost kind wins", func(t *testing.T) {
		inner := errx.E("store", errx.NotFound, errors.New("missing"))
		outer := errx.E("service", errx.UpstreamFailure, inner)

		assert.Equal(t, errx.UpstreamFailure, errx.KindOf(outer))
	})
}

func TestKindOf_Unknown(t *testing.T) {
	assert.Equal(t, errx.Unknown, errx.KindOf(errors.New("plain")))
	assert.Empty(t, errx.OpOf(errors.New("plain")))
}

func TestError_Message(t *testing.T) {
	t.Run("op only", func(t *testing.T) {
		e := &errx.Error{Op: "op"}
		assert.Equal(t, "op", e.Error())
	})

	t.Run("error only", func(t *testing.T) {
		e := &errx.Error{Err: errors.New("cause")}
		assert.Equal(t, "cause", e.Error())
	})
}

func TestKind_String(t *testing.T) {
	tests := map[errx.Kind]string{
		errx.Unknown:             "Unknown",
		errx.InvalidArgument:     "InvalidArgument",
		errx.NotFound:            "NotFound",
		errx.DataCorruption:      "DataCorruption",
		errx.AllocationExhausted: "AllocationExhausted",
		errx.UpstreamFailure:     "UpstreamFailure",
		errx.Kind(42):            "Kind(42)",
	}

	for kind, want := range tests {
		assert.Equal(t, want, kind.String())
	}
}

func TestReason(t *testing.T) {
	t.Run("strips operation prefixes", func(t *testing.T) {
		inner := errx.E("inner", errx.InvalidArgument, errors.New("url is required"))
		err := errx.E("outer", errx.InvalidArgument, inner)

		assert.Equal(t, "url is required", errx.Reason(err))
	})

	t.Run("keeps fmt wrapping of the cause", func(t *testing.T) {
		err := errx.E("op", errx.InvalidArgument, fmt.Errorf("url: %w", errors.New("bad")))

		assert.Equal(t, "url: bad", errx.Reason(err))
	})

	t.Run("plain and nil errors", func(t *testing.T) {
		assert.Equal(t, "plain", errx.Reason(errors.New("plain")))
		assert.Empty(t, errx.Reason(nil))
	})
}
