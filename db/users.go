package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
	"github.com/EO-DataHub/eodhp-user-admin/models"
)

var _ directory.Store = (*UserDB)(nil)

const userFilter = `
	WHERE ($1 = '' OR strpos(lower(name), $1) > 0 OR strpos(lower(email), $1) > 0)
	  AND ($2 = '' OR status = $2)`

// List returns one page of users in insertion order, filtered the same way
// as the in-memory directory.
func (u *UserDB) List(ctx context.Context, params models.ListParams) (models.ListResult, error) {
	if err := params.Validate(); err != nil {
		return models.ListResult{}, err
	}

	query := strings.ToLower(params.Query)
	status := ""
	if params.Status != "" && params.Status != models.StatusFilterAll {
		status = string(params.Status)
	}

	var total int
	err := u.DB.QueryRowContext(ctx, `SELECT count(*) FROM users`+userFilter, query, status).Scan(&total)
	if err != nil {
		u.Log.Error().Err(err).Msg("failed to count users")
		return models.ListResult{}, fmt.Errorf("count users: %w", err)
	}

	rows, err := u.DB.QueryContext(ctx, `
		SELECT id, name, email, status, created_at FROM users`+userFilter+`
		ORDER BY seq
		LIMIT $3 OFFSET $4`,
		query, status, params.PageSize, (params.Page-1)*params.PageSize)
	if err != nil {
		u.Log.Error().Err(err).Msg("failed to list users")
		return models.ListResult{}, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.UserID, &user.Name, &user.Email, &user.Status, &user.CreatedAt); err != nil {
			return models.ListResult{}, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return models.ListResult{}, fmt.Errorf("list users: %w", err)
	}

	if err := u.loadGroups(ctx, users); err != nil {
		return models.ListResult{}, err
	}
	return models.ListResult{Users: users, TotalCount: total}, nil
}

// UpdateStatus sets the status of one user and returns the stored record.
func (u *UserDB) UpdateStatus(ctx context.Context, userID string, status models.Status) (models.User, error) {
	if !status.Valid() {
		return models.User{}, fmt.Errorf("invalid status %q", status)
	}

	var user models.User
	err := u.DB.QueryRowContext(ctx, `
		UPDATE users SET status = $2 WHERE id = $1
		RETURNING id, name, email, status, created_at`,
		userID, string(status)).Scan(&user.UserID, &user.Name, &user.Email, &user.Status, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, directory.ErrNotFound
	}
	if err != nil {
		u.Log.Error().Err(err).Str("user_id", userID).Msg("failed to update user status")
		return models.User{}, fmt.Errorf("update status of %s: %w", userID, err)
	}

	users := []models.User{user}
	if err := u.loadGroups(ctx, users); err != nil {
		return models.User{}, err
	}

	u.Log.Debug().Str("user_id", userID).Str("status", string(status)).Msg("user status updated")
	return users[0], nil
}

// Seed inserts users that do not exist yet, keeping their order. Existing
// users are left untouched.
func (u *UserDB) Seed(ctx context.Context, users []models.User) (int, error) {
	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, user := range users {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, name, email, status, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`,
			user.UserID, user.Name, user.Email, string(user.Status), user.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("seed user %s: %w", user.UserID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		inserted++

		for _, g := range user.Groups {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_groups (user_id, group_name) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, user.UserID, g.Name); err != nil {
				return 0, fmt.Errorf("seed groups of %s: %w", user.UserID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing transaction: %w", err)
	}
	u.Log.Info().Int("inserted", inserted).Int("requested", len(users)).Msg("users seeded")
	return inserted, nil
}

// loadGroups fills the Groups of every user in place.
func (u *UserDB) loadGroups(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}

	ids := make([]string, len(users))
	index := make(map[string]int, len(users))
	for i := range users {
		ids[i] = users[i].UserID
		index[users[i].UserID] = i
		users[i].Groups = []models.Group{}
	}

	rows, err := u.DB.QueryContext(ctx, `
		SELECT user_id, group_name FROM user_groups
		WHERE user_id = ANY($1)
		ORDER BY user_id, group_name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, group string
		if err := rows.Scan(&userID, &group); err != nil {
			return fmt.Errorf("scan group: %w", err)
		}
		i := index[userID]
		users[i].Groups = append(users[i].Groups, models.Group{Name: group})
	}
	return rows.Err()
}
