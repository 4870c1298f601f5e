package models

import (
	"fmt"
	"math"
	"time"
)

// Status is the activation state of a user.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is one of the known user statuses.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Toggle returns the opposite status.
func (s Status) Toggle() Status {
	if s == StatusActive {
		return StatusInactive
	}
	return StatusActive
}

// ParseStatus parses a user status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("invalid status %q: must be active or inactive", v)
	}
	return s, nil
}

// StatusFilter narrows a listing by status. StatusFilterAll means no
// constraint and is never sent to a remote backend.
type StatusFilter string

const (
	StatusFilterAll      StatusFilter = "all"
	StatusFilterActive   StatusFilter = "active"
	StatusFilterInactive StatusFilter = "inactive"
)

// ParseStatusFilter parses a status filter; the empty string means all.
func ParseStatusFilter(v string) (StatusFilter, error) {
	switch StatusFilter(v) {
	case "", StatusFilterAll:
		return StatusFilterAll, nil
	case StatusFilterActive, StatusFilterInactive:
		return StatusFilter(v), nil
	}
	return "", fmt.Errorf("invalid status filter %q: must be all, active or inactive", v)
}

// Matches reports whether a user with status s passes the filter.
func (f StatusFilter) Matches(s Status) bool {
	if f == "" || f == StatusFilterAll {
		return true
	}
	return Status(f) == s
}

// Group represents a group in the system.
type Group struct {
	Name string `json:"groupName"`
}

// User represents a user in the directory.
type User struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Groups    []Group   `json:"groups"`
}

// Clone returns a deep copy of the user.
func (u User) Clone() User {
	c := u
	if u.Groups != nil {
		c.Groups = make([]Group, len(u.Groups))
		copy(c.Groups, u.Groups)
	}
	return c
}

// ListParams are the pagination and filter parameters of a listing.
// Page is 1-based.
type ListParams struct {
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
	Query    string       `json:"query,omitempty"`
	Status   StatusFilter `json:"status,omitempty"`
}

// Validate checks the parameters can be served.
func (p ListParams) Validate() error {
	if p.Page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", p.Page)
	}
	if p.PageSize < 1 {
		return fmt.Errorf("pageSize must be >= 1, got %d", p.PageSize)
	}
	if p.Page > math.MaxInt/p.PageSize {
		return fmt.Errorf("page %d is out of range for pageSize %d", p.Page, p.PageSize)
	}
	if _, err := ParseStatusFilter(string(p.Status)); err != nil {
		return err
	}
	return nil
}

// Key returns the cache key for the exact parameter tuple.
func (p ListParams) Key() string {
	status := p.Status
	if status == "" {
		status = StatusFilterAll
	}
	return fmt.Sprintf("users/list/%d/%d/%s/%q", p.Page, p.PageSize, status, p.Query)
}

// ListResult is one page of users plus the size of the filtered set.
type ListResult struct {
	Users      []User `json:"users"`
	TotalCount int    `json:"totalCount"`
}

// Clone returns a deep copy of the result.
func (r ListResult) Clone() ListResult {
	c := ListResult{TotalCount: r.TotalCount, Users: make([]User, len(r.Users))}
	for i, u := range r.Users {
		c.Users[i] = u.Clone()
	}
	return c
}

// UpdateStatusRequest is the body of a status change.
type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

// UpdateStatusResult is the outcome of a status change.
type UpdateStatusResult struct {
	Success bool   `json:"success"`
	User    User   `json:"data"`
	Message string `json:"message"`
}
