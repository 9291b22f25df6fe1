package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/ascgate/internal/core"
)

type fakeJournal struct {
	records   []core.UploadRecord
	err       error
	lastState core.UploadState
	lastLimit int
}

func (f *fakeJournal) ListUploads(ctx context.Context, state core.UploadState, limit int) ([]core.UploadRecord, error) {
	f.lastState, f.lastLimit = state, limit
	return f.records, f.err
}

func (f *fakeJournal) GetUpload(ctx context.Context, id string) (*core.UploadRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i], nil
		}
	}
	return nil, nil
}

func uploadsRouter(journal UploadJournal) http.Handler {
	r := chi.NewRouter()
	r.Get("/uploads", NewListUploadsHandler(journal))
	r.Get("/uploads/{id}", NewGetUploadHandler(journal))
	return r
}

func TestListUploadsHandler(t *testing.T) {
	journal := &fakeJournal{records: []core.UploadRecord{{ID: "u1", State: core.UploadStateFailed}}}

	rec := httptest.NewRecorder()
	uploadsRouter(journal).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads?state=failed&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body UploadsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, core.UploadStateFailed, journal.lastState)
	assert.Equal(t, 5, journal.lastLimit)
}

func TestListUploadsHandlerErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	uploadsRouter(&fakeJournal{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	uploadsRouter(&fakeJournal{err: errors.New("locked")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "DATABASE_ERROR")

	rec = httptest.NewRecorder()
	uploadsRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetUploadHandler(t *testing.T) {
	journal := &fakeJournal{records: []core.UploadRecord{{ID: "u1", FileName: "home.png"}}}

	rec := httptest.NewRecorder()
	uploadsRouter(journal).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/u1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "home.png")

	rec = httptest.NewRecorder()
	uploadsRouter(journal).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
