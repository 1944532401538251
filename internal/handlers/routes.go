package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers all registry routes.
func RegisterRoutes(api huma.API, h *RegistryHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-url",
		Method:        http.MethodPost,
		Path:          "/registerUrl",
		Summary:       "Register URL",
		Description:   "Maps a canonical URL to a short code, or refreshes the preview metadata of a known URL.",
		Tags:          []string{"Registry"},
		DefaultStatus: http.StatusOK,
	}, h.RegisterURL)

	huma.Register(api, huma.Operation{
		OperationID: "resolve-root",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Resolve without short code",
		Description: "Always rejected: the short code path segment is empty.",
		Tags:        []string{"Registry"},
	}, h.ResolveEmpty)

	huma.Register(api, huma.Operation{
		OperationID: "resolve",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Resolve short code",
		Description: "Returns an HTML page that redirects to the canonical URL and carries its link preview tags.",
		Tags:        []string{"Registry"},
	}, h.Resolve)

	huma.Register(api, huma.Operation{
		OperationID:   "screenshot",
		Method:        http.MethodPost,
		Path:          "/screenshot",
		Summary:       "Capture screenshot",
		Description:   "Captures a screenshot of the given URL and returns its hosted image URL.",
		Tags:          []string{"Screenshots"},
		DefaultStatus: http.StatusOK,
	}, h.Screenshot)
}
