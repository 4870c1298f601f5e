package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
	"github.com/EO-DataHub/eodhp-user-admin/models"
)

// setupUserDB starts a PostgreSQL container, migrates it and seeds it with
// the same users as an in-memory directory built from seed.
func setupUserDB(t *testing.T, n int, seed int64) (*UserDB, []models.User) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:13",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "users",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgresC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "could not start container")
	t.Cleanup(func() { _ = postgresC.Terminate(ctx) })

	host, err := postgresC.Host(ctx)
	require.NoError(t, err)
	port, err := postgresC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	source := fmt.Sprintf("postgres://postgres:postgres@%s:%s/users?sslmode=disable", host, port.Port())
	logger := zerolog.Nop()
	userDB, err := NewUserDB(source, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = userDB.Close() })

	require.NoError(t, userDB.Migrate(ctx))

	users := directory.SeedUsers(n, seed, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	users[0].Groups = []models.Group{{Name: "admins"}, {Name: "staff"}}
	inserted, err := userDB.Seed(ctx, users)
	require.NoError(t, err)
	require.Equal(t, n, inserted)

	return userDB, users
}

func TestUserDB_MatchesInMemoryDirectory(t *testing.T) {
	userDB, users := setupUserDB(t, 40, 3)
	mem, err := directory.New(users...)
	require.NoError(t, err)

	ctx := context.Background()
	cases := []models.ListParams{
		{Page: 1, PageSize: 10, Status: models.StatusFilterAll},
		{Page: 4, PageSize: 10},
		{Page: 5, PageSize: 10},
		{Page: 1, PageSize: 7, Status: models.StatusFilterActive},
		{Page: 2, PageSize: 3, Status: models.StatusFilterInactive},
		{Page: 1, PageSize: 10, Query: "USER 1"},
		{Page: 1, PageSize: 10, Query: "user3@", Status: models.StatusFilterActive},
		{Page: 1, PageSize: 10, Query: "nobody"},
	}
	for _, params := range cases {
		t.Run(params.Key(), func(t *testing.T) {
			want, err := mem.List(ctx, params)
			require.NoError(t, err)
			got, err := userDB.List(ctx, params)
			require.NoError(t, err)

			assert.Equal(t, want.TotalCount, got.TotalCount)
			require.Len(t, got.Users, len(want.Users))
			for i := range want.Users {
				assert.Equal(t, want.Users[i].UserID, got.Users[i].UserID)
				assert.Equal(t, want.Users[i].Status, got.Users[i].Status)
				assert.Len(t, got.Users[i].Groups, len(want.Users[i].Groups))
			}
		})
	}
}

func TestUserDB_UpdateStatus(t *testing.T) {
	userDB, users := setupUserDB(t, 5, 1)
	ctx := context.Background()

	target := users[0].Status.Toggle()
	updated, err := userDB.UpdateStatus(ctx, users[0].UserID, target)
	require.NoError(t, err)
	assert.Equal(t, target, updated.Status)
	assert.Equal(t, users[0].Email, updated.Email)
	assert.Equal(t, []models.Group{{Name: "admins"}, {Name: "staff"}}, updated.Groups)
	assert.True(t, users[0].CreatedAt.Equal(updated.CreatedAt))

	_, err = userDB.UpdateStatus(ctx, "user-999", models.StatusActive)
	assert.ErrorIs(t, err, directory.ErrNotFound)

	_, err = userDB.UpdateStatus(ctx, users[1].UserID, models.Status("banned"))
	assert.Error(t, err)
}

func TestUserDB_SeedIsIdempotent(t *testing.T) {
	userDB, users := setupUserDB(t, 5, 1)

	inserted, err := userDB.Seed(context.Background(), users)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	res, err := userDB.List(context.Background(), models.ListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalCount)
}
