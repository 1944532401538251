package handlers

import (
	"net/http"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

var (
	defaultNewError  = huma.NewError
	installErrorsOnce sync.Once
)

// NewError builds huma errors for this API. Request validation failures,
// which huma reports as 422, are answered with 400 like every other invalid input.
func NewError(status int, msg string, errs ...error) huma.StatusError {
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}

	return defaultNewError(status, msg, errs...)
}

// UseErrorMapping installs NewError as huma's error constructor.
func UseErrorMapping() {
	installErrorsOnce.Do(func() {
		huma.NewError = NewError
	})
}
