package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/namelens/ascgate/internal/core"
	apperrors "github.com/namelens/ascgate/internal/errors"
)

// UploadJournal is the read side of the upload journal.
type UploadJournal interface {
	ListUploads(ctx context.Context, state core.UploadState, limit int) ([]core.UploadRecord, error)
	GetUpload(ctx context.Context, id string) (*core.UploadRecord, error)
}

// UploadsResponse lists journal entries.
type UploadsResponse struct {
	Data []core.UploadRecord `json:"data"`
}

// NewListUploadsHandler serves GET /uploads?state=&limit=.
func NewListUploadsHandler(journal UploadJournal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			respondWithError(w, r, apperrors.NewUnavailableError("upload journal is disabled"))
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				respondWithError(w, r, apperrors.NewInvalidInputError("limit must be a non-negative integer"))
				return
			}
			limit = parsed
		}

		records, err := journal.ListUploads(r.Context(), core.UploadState(r.URL.Query().Get("state")), limit)
		if err != nil {
			respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to list uploads"))
			return
		}
		if records == nil {
			records = []core.UploadRecord{}
		}
		writeJSON(w, http.StatusOK, UploadsResponse{Data: records})
	}
}

// NewGetUploadHandler serves GET /uploads/{id}.
func NewGetUploadHandler(journal UploadJournal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			respondWithError(w, r, apperrors.NewUnavailableError("upload journal is disabled"))
			return
		}

		record, err := journal.GetUpload(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to load upload"))
			return
		}
		if record == nil {
			respondWithError(w, r, apperrors.NewNotFoundError("upload not found"))
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}
