package models

// ListResponse wraps a listing as returned by GET /users.
type ListResponse struct {
	Data ListResult `json:"data"`
}

// UserResponse wraps a single user as returned by PATCH /users/{id}.
type UserResponse struct {
	Data    User   `json:"data"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is written for every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
