package server

import (
	"net/http"
	"strings"

	apperrors "github.com/namelens/ascgate/internal/errors"
)

// apiPrefix is the route prefix of the read-only API passthrough.
const apiPrefix = "/v1/"

// HandleError writes err as an error envelope.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, apiPrefix) {
		HandleError(w, r, apperrors.NewNotFoundError("API passthrough is disabled: no upstream is configured"))
		return
	}
	HandleError(w, r, apperrors.NewNotFoundError("The requested resource was not found"))
}

// methodNotAllowed points writes against the passthrough at the CLI, which
// is the only path that performs them.
func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, apiPrefix) {
		HandleError(w, r, apperrors.NewMethodNotAllowedError("API passthrough is read-only; use the CLI for "+r.Method+" requests"))
		return
	}
	HandleError(w, r, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
}
