package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
	"github.com/EO-DataHub/eodhp-user-admin/models"
)

const (
	defaultPage     = 1
	defaultPageSize = 10

	userNotFoundMessage = "User not found"
)

// ListUsersService serves one page of the directory.
func ListUsersService(svc *Service, w http.ResponseWriter, r *http.Request) {
	params, err := ParseListParams(r)
	if err != nil {
		HandleErrResponse(w, r, http.StatusBadRequest, err.Error(), err)
		return
	}

	if err := sleep(r.Context(), svc.Config.Server.ListDelay); err != nil {
		return
	}

	result, err := svc.Store.List(r.Context(), params)
	if err != nil {
		HandleErrResponse(w, r, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	WriteResponse(w, http.StatusOK, models.ListResponse{Data: result})
}

// UpdateUserStatusService sets the status of the user named in the path.
func UpdateUserStatusService(svc *Service, w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user-id"]
	logger := zerolog.Ctx(r.Context()).With().Str("user_id", userID).Logger()

	var payload models.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		HandleErrResponse(w, r, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	if !payload.Status.Valid() {
		HandleErrResponse(w, r, http.StatusBadRequest,
			fmt.Sprintf("Invalid status %q: must be active or inactive", payload.Status), nil)
		return
	}

	if err := sleep(r.Context(), svc.Config.Server.UpdateDelay); err != nil {
		return
	}

	user, err := svc.Store.UpdateStatus(r.Context(), userID, payload.Status)
	if errors.Is(err, directory.ErrNotFound) {
		HandleErrResponse(w, r, http.StatusNotFound, userNotFoundMessage, err)
		return
	}
	if err != nil {
		HandleErrResponse(w, r, http.StatusInternalServerError, "Failed to update user status", err)
		return
	}

	if svc.Publisher != nil {
		event := models.UserStatusEvent{UserID: user.UserID, Status: user.Status, Timestamp: time.Now().UTC()}
		if err := svc.Publisher.Notify(event); err != nil {
			// the change is stored even when the event is lost
			logger.Warn().Err(err).Msg("failed to publish user status event")
		}
	}

	logger.Info().Str("status", string(user.Status)).Msg("user status updated")
	WriteResponse(w, http.StatusOK, models.UserResponse{
		Data:    user,
		Message: fmt.Sprintf("User status updated to %s", user.Status),
	})
}

// ParseListParams reads page, pageSize, query and status from the URL.
// Missing page and pageSize default to 1 and 10.
func ParseListParams(r *http.Request) (models.ListParams, error) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), defaultPage)
	if err != nil {
		return models.ListParams{}, fmt.Errorf("invalid page: %w", err)
	}
	pageSize, err := intParam(q.Get("pageSize"), defaultPageSize)
	if err != nil {
		return models.ListParams{}, fmt.Errorf("invalid pageSize: %w", err)
	}
	status, err := models.ParseStatusFilter(q.Get("status"))
	if err != nil {
		return models.ListParams{}, err
	}

	params := models.ListParams{
		Page:     page,
		PageSize: pageSize,
		Query:    q.Get("query"),
		Status:   status,
	}
	if err := params.Validate(); err != nil {
		return models.ListParams{}, err
	}
	return params, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// sleep simulates backend latency. It returns early when the client goes
// away.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
