package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/namelens/ascgate/internal/core/engine"
	apperrors "github.com/namelens/ascgate/internal/errors"
	"github.com/namelens/ascgate/internal/server/middleware"
)

// Query parameters consumed by the passthrough and not forwarded upstream.
const (
	queryAll = "all"
	queryMax = "max"
)

// ListResponse is returned when the passthrough walks every page.
type ListResponse struct {
	Data []json.RawMessage `json:"data"`
	Meta ListMeta          `json:"meta"`
}

// ListMeta summarizes a paginated walk.
type ListMeta struct {
	Count     int  `json:"count"`
	Truncated bool `json:"truncated,omitempty"`
}

// APIProxy serves read-only GET passthrough to the remote API. The path
// after the route prefix is resolved against the executor's base URL.
type APIProxy struct {
	API       engine.Doer
	Paginator *engine.Paginator
}

// NewAPIProxy builds a proxy sending requests through api.
func NewAPIProxy(api engine.Doer) *APIProxy {
	return &APIProxy{API: api, Paginator: engine.NewPaginator(api)}
}

func (p *APIProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p == nil || p.API == nil {
		respondWithError(w, r, apperrors.NewUnavailableError("remote API is not configured"))
		return
	}

	path, err := proxyPath(chi.URLParam(r, "*"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	query := r.URL.Query()
	all, maxItems, err := pagingOptions(query)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	query.Del(queryAll)
	query.Del(queryMax)

	req := engine.Request{
		Method:    http.MethodGet,
		Path:      path,
		Query:     query,
		RequestID: middleware.GetRequestID(r.Context()),
	}

	if all {
		items, err := p.Paginator.Collect(r.Context(), req, maxItems)
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ListResponse{
			Data: items,
			Meta: ListMeta{Count: len(items), Truncated: maxItems > 0 && len(items) >= maxItems},
		})
		return
	}

	resp, err := p.API.Execute(r.Context(), req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if resp.NoContent() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func proxyPath(raw string) (string, error) {
	unescaped, err := url.PathUnescape(raw)
	if err != nil {
		return "", apperrors.NewInvalidInputError("resource path is not valid")
	}
	trimmed := strings.Trim(unescaped, "/")
	if trimmed == "" {
		return "", apperrors.NewInvalidInputError("a resource path is required, e.g. /v1/apps")
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", apperrors.NewInvalidInputError("resource path must not contain empty or relative segments")
		}
	}
	return "/" + trimmed, nil
}

func pagingOptions(query map[string][]string) (bool, int, error) {
	all := false
	if values := query[queryAll]; len(values) > 0 {
		parsed, err := strconv.ParseBool(values[0])
		if err != nil {
			return false, 0, apperrors.NewInvalidInputError("all must be true or false")
		}
		all = parsed
	}

	maxItems := 0
	if values := query[queryMax]; len(values) > 0 {
		parsed, err := strconv.Atoi(values[0])
		if err != nil || parsed < 0 {
			return false, 0, apperrors.NewInvalidInputError("max must be a non-negative integer")
		}
		maxItems = parsed
	}
	return all, maxItems, nil
}
