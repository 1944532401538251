// Package preview renders the redirect page served for a short code. All
// record fields pass through html/template, so attribute and text content
// are escaped for their context.
package preview

import (
	"bytes"
	"errors"
	"html/template"
	"net/url"
	"strings"

	"github.com/serroba/link-preview/internal/shortener"
)

// ErrUnsafeURL is returned when a record's target is not an http(s) URL.
var ErrUnsafeURL = errors.New("redirect target must be an http or https url")

const defaultTitle = "Redirecting"

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta http-equiv="refresh" content="{{.Refresh}}">
<meta property="og:url" content="{{.URL}}">
<meta property="og:title" content="{{.Title}}">
{{- if .Description}}
<meta property="og:description" content="{{.Description}}">
{{- end}}
{{- if .Image}}
<meta property="og:image" content="{{.Image}}">
<meta name="twitter:card" content="summary_large_image">
{{- else}}
<meta name="twitter:card" content="summary">
{{- end}}
</head>
<body>
<p><a href="{{.URL}}">{{.URL}}</a></p>
</body>
</html>
`))

type pageData struct {
	Title       string
	Description string
	URL         string
	Image       string
	Refresh     string
}

// Render writes the redirect page for record. Targets other than http(s) are
// rejected; an image URL with another scheme is dropped.
func Render(record *shortener.Record) ([]byte, error) {
	if !isHTTPURL(record.CanonicalURL) {
		return nil, ErrUnsafeURL
	}

	data := pageData{
		Title:       record.Title,
		Description: record.Description,
		URL:         record.CanonicalURL,
		Refresh:     "0; url=" + record.CanonicalURL,
	}

	if data.Title == "" {
		data.Title = defaultTitle
	}

	if isHTTPURL(record.ImageURL) {
		data.Image = record.ImageURL
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}

	scheme := strings.ToLower(u.Scheme)

	return scheme == "http" || scheme == "https"
}
