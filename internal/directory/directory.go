// Package directory holds the in-memory user directory used as the
// authoritative store when no real backend is reachable.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/EO-DataHub/eodhp-user-admin/models"
)

// ErrNotFound is returned when a user ID is not in the directory.
var ErrNotFound = errors.New("user not found")

// Store is the contract shared by every user directory implementation.
type Store interface {
	// List filters by query and status, then returns one page.
	List(ctx context.Context, params models.ListParams) (models.ListResult, error)
	// UpdateStatus replaces the status of one user and returns the updated record.
	UpdateStatus(ctx context.Context, userID string, status models.Status) (models.User, error)
}

// Directory is an owned, concurrency-safe, in-memory user collection.
// Records keep their insertion order.
type Directory struct {
	mu    sync.RWMutex
	users []models.User
	index map[string]int
}

var _ Store = (*Directory)(nil)

// New creates a directory holding copies of users. User IDs must be unique.
func New(users ...models.User) (*Directory, error) {
	d := &Directory{
		users: make([]models.User, 0, len(users)),
		index: make(map[string]int, len(users)),
	}
	for _, u := range users {
		if err := d.Add(u); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add appends a user to the directory.
func (d *Directory) Add(u models.User) error {
	if u.UserID == "" {
		return errors.New("userId is required")
	}
	if !u.Status.Valid() {
		return fmt.Errorf("user %s: invalid status %q", u.UserID, u.Status)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.index[u.UserID]; exists {
		return fmt.Errorf("user %s already exists", u.UserID)
	}
	d.index[u.UserID] = len(d.users)
	d.users = append(d.users, u.Clone())
	return nil
}

// Remove deletes a user, reporting whether it existed.
func (d *Directory) Remove(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	i, ok := d.index[userID]
	if !ok {
		return false
	}
	d.users = append(d.users[:i], d.users[i+1:]...)
	delete(d.index, userID)
	for j := i; j < len(d.users); j++ {
		d.index[d.users[j].UserID] = j
	}
	return true
}

// Get returns a copy of one user.
func (d *Directory) Get(userID string) (models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	i, ok := d.index[userID]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return d.users[i].Clone(), nil
}

// Len returns the number of users in the directory.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// List filters the directory by a case-insensitive substring match on name
// or email (when a query is given), then by exact status (unless the filter
// is all), and returns the requested page of the filtered sequence.
// TotalCount is the size of the filtered set before slicing.
func (d *Directory) List(_ context.Context, params models.ListParams) (models.ListResult, error) {
	if err := params.Validate(); err != nil {
		return models.ListResult{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	q := strings.ToLower(params.Query)
	filtered := make([]models.User, 0, len(d.users))
	for _, u := range d.users {
		if q != "" &&
			!strings.Contains(strings.ToLower(u.Name), q) &&
			!strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		if !params.Status.Matches(u.Status) {
			continue
		}
		filtered = append(filtered, u)
	}

	return Paginate(filtered, params.Page, params.PageSize), nil
}

// UpdateStatus replaces the status of userID in place. It is the only
// mutation path for existing records.
func (d *Directory) UpdateStatus(_ context.Context, userID string, status models.Status) (models.User, error) {
	if !status.Valid() {
		return models.User{}, fmt.Errorf("invalid status %q", status)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	i, ok := d.index[userID]
	if !ok {
		return models.User{}, ErrNotFound
	}
	d.users[i].Status = status
	return d.users[i].Clone(), nil
}

// Paginate slices [(page-1)*pageSize, page*pageSize) out of filtered.
// A page past the end yields no users but keeps the total.
func Paginate(filtered []models.User, page, pageSize int) models.ListResult {
	result := models.ListResult{
		Users:      []models.User{},
		TotalCount: len(filtered),
	}

	if page < 1 || pageSize < 1 || page-1 > (len(filtered)-1)/pageSize {
		return result
	}
	start := (page - 1) * pageSize
	if start >= len(filtered) {
		return result
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	for _, u := range filtered[start:end] {
		result.Users = append(result.Users, u.Clone())
	}
	return result
}
