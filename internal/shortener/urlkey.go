package shortener

import (
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"github.com/zeebo/blake3"
)

// MaxURLLength bounds every URL accepted at registration.
const MaxURLLength = 2048

var (
	errURLTooLong   = errors.New("url too long (max 2048 characters)")
	errURLFormat    = errors.New("invalid url format")
	errURLScheme    = errors.New("url scheme must be http or https")
	errURLNoHost    = errors.New("url must include host")
	errURLNotAbsURL = errors.New("url must be absolute")
)

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(rawURL string) error {
	if len(rawURL) > MaxURLLength {
		return errURLTooLong
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return errURLFormat
	}

	if u.Scheme == "" {
		return errURLNotAbsURL
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return errURLScheme
	}

	if u.Host == "" {
		return errURLNoHost
	}

	return nil
}

// NormalizeURL normalizes a URL for deduplication.
// - Lowercases the scheme and host
// - Removes default ports (80 for http, 443 for https)
// - Removes trailing slashes from path (unless path is just "/")
// - Removes the fragment
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	host := u.Host
	if strings.HasSuffix(host, ":80") && u.Scheme == "http" {
		u.Host = strings.TrimSuffix(host, ":80")
	} else if strings.HasSuffix(host, ":443") && u.Scheme == "https" {
		u.Host = strings.TrimSuffix(host, ":443")
	}

	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}

	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

// NewURLKey returns the BLAKE3 digest of the normalized URL, hex encoded.
func NewURLKey(rawURL string) (URLKey, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	sum := blake3.Sum256([]byte(normalized))

	return URLKey(hex.EncodeToString(sum[:])), nil
}
