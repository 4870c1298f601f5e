package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/EO-DataHub/eodhp-user-admin/api/middleware"
	"github.com/EO-DataHub/eodhp-user-admin/api/services"
	"github.com/EO-DataHub/eodhp-user-admin/internal/authn"
)

// @Summary List users
// @Description Returns one page of users. The query matches name or email case-insensitively; status narrows the result to active or inactive users.
// @Tags users
// @Produce json
// @Param page query int false "1-based page number" default(1)
// @Param pageSize query int false "Users per page" default(10)
// @Param query query string false "Search text" example(jane)
// @Param status query string false "Status filter" Enums(all, active, inactive)
// @Success 200 {object} models.ListResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /users [get]
func ListUsers(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.ListUsersService(svc, w, r)
	}
}

// @Summary Update a user's status
// @Description Activates or deactivates a user. When the server requires it, the caller must hold the hub_admin realm role.
// @Tags users
// @Accept json
// @Produce json
// @Param user-id path string true "User ID" example(user-1)
// @Param body body models.UpdateStatusRequest true "New status"
// @Success 200 {object} models.UserResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /users/{user-id} [patch]
func UpdateUserStatus(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		if svc.Config.Server.RequireAdmin {
			claims, ok := r.Context().Value(middleware.ClaimsKey).(authn.Claims)
			if !ok {
				services.HandleErrResponse(w, r, http.StatusUnauthorized, "unauthorized: invalid claims", nil)
				return
			}

			// Check if the user is an admin
			if !claims.HasRole(authn.AdminRole) {
				zerolog.Ctx(r.Context()).Warn().Str("username", claims.Username).Msg("status change by non-admin rejected")
				services.HandleErrResponse(w, r, http.StatusForbidden, "forbidden: administrator use only", nil)
				return
			}
		}

		services.UpdateUserStatusService(svc, w, r)
	}
}
