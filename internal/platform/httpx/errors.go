package httpx

import (
	"errors"
	"net/http"

	"github.com/tallyline/tallyline/internal/shared"
)

// RespondError maps shared domain errors to HTTP responses using RFC7807.
// Packages with richer error taxonomies layer their own mapping on top.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
