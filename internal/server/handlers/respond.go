package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/namelens/ascgate/internal/errors"
)

// respondWithError writes err as an error envelope with its mapped status.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
