package services

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/EO-DataHub/eodhp-user-admin/models"
)

func WriteResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	w.Header().Set("Content-Type", "application/json")

	// We don't want to cache API responses so the client receives most curent data
	w.Header().Set("Cache-Control", "max-age=0")

	w.WriteHeader(statusCode)

	if response != nil {
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
	}
}

// HandleErrResponse writes {"error": message}. Database errors are logged
// with their postgres code and reported without internals.
func HandleErrResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logger := zerolog.Ctx(r.Context())

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		logger.Error().Err(err).Str("code", pqErr.Code.Name()).Msg(message)
	} else if err != nil && statusCode >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg(message)
	} else {
		logger.Debug().Err(err).Int("status", statusCode).Msg(message)
	}

	WriteResponse(w, statusCode, models.ErrorResponse{Error: message})
}
