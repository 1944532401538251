package shortener_test

import (
	"strings"
	"testing"

	"github.com/serroba/link-preview/internal/shortener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercase host",
			input:    "https://EXAMPLE.COM/path",
			expected: "https://example.com/path",
		},
		{
			name:     "lowercase scheme",
			input:    "HTTPS://example.com/path",
			expected: "https://example.com/path",
		},
		{
			name:     "remove trailing slash",
			input:    "https://example.com/path/",
			expected: "https://example.com/path",
		},
		{
			name:     "keep root slash",
			input:    "https://example.com/",
			expected: "https://example.com/",
		},
		{
			name:     "remove default https port",
			input:    "https://example.com:443/path",
			expected: "https://example.com/path",
		},
		{
			name:     "remove default http port",
			input:    "http://example.com:80/path",
			expected: "http://example.com/path",
		},
		{
			name:     "keep non-default port",
			input:    "https://example.com:8080/path",
			expected: "https://example.com:8080/path",
		},
		{
			name:     "remove fragment",
			input:    "https://example.com/path#section",
			expected: "https://example.com/path",
		},
		{
			name:     "preserve query string",
			input:    "https://example.com/path?foo=bar",
			expected: "https://example.com/path?foo=bar",
		},
		{
			name:     "preserve path case",
			input:    "https://example.com/Path/To",
			expected: "https://example.com/Path/To",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := shortener.NormalizeURL(tt.input)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeURL_Invalid(t *testing.T) {
	_, err := shortener.NormalizeURL("://bad")

	assert.Error(t, err)
}

func TestNewURLKey(t *testing.T) {
	t.Run("equivalent urls share a key", func(t *testing.T) {
		a, err := shortener.NewURLKey("HTTPS://Example.com:443/a/")
		require.NoError(t, err)

		b, err := shortener.NewURLKey("https://example.com/a")
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})

	t.Run("different urls have different keys", func(t *testing.T) {
		a, _ := shortener.NewURLKey("https://example.com/a")
		b, _ := shortener.NewURLKey("https://example.com/b")

		assert.NotEqual(t, a, b)
	})

	t.Run("key is 64 hex characters", func(t *testing.T) {
		key, err := shortener.NewURLKey("https://example.com/a")

		require.NoError(t, err)
		assert.Regexp(t, `^[0-9a-f]{64}$`, string(key))
	})
}

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://example.com",
		"http://example.com/a?b=c",
		"HTTPS://EXAMPLE.COM/x",
	}
	for _, u := range valid {
		assert.NoError(t, shortener.ValidateURL(u), u)
	}

	invalid := []string{
		"example.com/path",
		"ftp://example.com/file",
		"javascript:alert(1)",
		"https://",
		"https://example.com/" + strings.Repeat("a", shortener.MaxURLLength),
		"http://[::1",
	}
	for _, u := range invalid {
		assert.Error(t, shortener.ValidateURL(u), u)
	}
}
