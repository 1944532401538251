package handlers

// Body fields are all optional in the schema; the registrar validates them so
// that missing fields are reported as 400 rather than 422.

// RegisterURLRequest is the request body for registering a URL.
type RegisterURLRequest struct {
	Body struct {
		URL                string `doc:"Canonical URL to shorten"               example:"https://example.com/a"     json:"url,omitempty"`
		Title              string `doc:"Preview title"                           example:"Example page"             json:"title,omitempty"`
		Description        string `doc:"Preview description"                     example:"An example page"          json:"description,omitempty"`
		ImageURL           string `doc:"Preview image URL"                       example:"https://img.example/a.png" json:"imageUrl,omitempty"`
		ImageScreenshotURL string `doc:"URL to screenshot for the preview image" example:"https://example.com/a"     json:"imageScreenshotUrl,omitempty"`
	}
}

// TextResponse is a plain-text response body.
type TextResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// ResolveRequest is the request for resolving a short code.
type ResolveRequest struct {
	Code string `doc:"The short code" example:"0a1b2c3d4e" path:"code"`
}

// PageResponse is the HTML redirect page for a short code.
type PageResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// ScreenshotRequest is the request for an ad-hoc screenshot.
type ScreenshotRequest struct {
	URL string `doc:"URL to capture" example:"https://example.com/a" query:"url"`
}

func newTextResponse(text string) *TextResponse {
	return &TextResponse{
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(text),
	}
}
