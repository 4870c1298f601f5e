package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EO-DataHub/eodhp-user-admin/internal/appconfig"
	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
	"github.com/EO-DataHub/eodhp-user-admin/internal/querycache"
	"github.com/EO-DataHub/eodhp-user-admin/internal/remote"
	"github.com/EO-DataHub/eodhp-user-admin/internal/usertable"
	"github.com/EO-DataHub/eodhp-user-admin/models"
)

// newOfflineTable returns a table whose backend is down, so it is served
// by the local directory.
func newOfflineTable(t *testing.T) (*usertable.Table, *directory.Directory) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	dir := directory.NewSeeded(35, 8)
	client, err := remote.NewClient(srv.URL, dir, remote.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	cache := querycache.New(client, querycache.WithLogger(zerolog.Nop()), querycache.WithRefetchOnInvalidate(false))
	t.Cleanup(cache.Close)
	table := usertable.New(cache, usertable.WithLogger(zerolog.Nop()), usertable.WithDebounce(time.Hour))
	t.Cleanup(table.Close)
	return table, dir
}

func runLine(t *testing.T, table *usertable.Table, line string, confirm bool) string {
	t.Helper()
	var out bytes.Buffer
	quit := runConsoleCommand(context.Background(), table, line, func(string) bool { return confirm }, &out)
	assert.False(t, quit)
	return out.String()
}

func TestConsole_Navigation(t *testing.T) {
	table, _ := newOfflineTable(t)

	out := runLine(t, table, "", false)
	assert.Contains(t, out, "Page 1 of 4, 35 users, filter all")
	assert.Contains(t, out, "user-1 ")

	out = runLine(t, table, "next", false)
	assert.Contains(t, out, "Page 2 of 4")
	assert.Contains(t, out, "user-11 ")

	out = runLine(t, table, "page 4", false)
	assert.Contains(t, out, "user-35 ")

	out = runLine(t, table, "next", false)
	assert.Contains(t, out, "page 5 is out of range")
	assert.Equal(t, 4, table.Params().Page)

	runLine(t, table, "prev", false)
	assert.Equal(t, 3, table.Params().Page)

	out = runLine(t, table, "page x", false)
	assert.Contains(t, out, `invalid page "x"`)
}

func TestConsole_SearchAndFilterResetPage(t *testing.T) {
	table, _ := newOfflineTable(t)
	runLine(t, table, "page 3", false)

	out := runLine(t, table, "search user 3", false)
	assert.Equal(t, 1, table.Params().Page)
	// User 3 and User 30..35
	assert.Contains(t, out, "Page 1 of 1, 7 users")

	runLine(t, table, "page 1", false)
	out = runLine(t, table, "/user 1", false)
	assert.Equal(t, "user 1", table.Params().Query)
	assert.Contains(t, out, `search "user 1"`)

	out = runLine(t, table, "filter bogus", false)
	assert.NotEmpty(t, out)
	out = runLine(t, table, "filter inactive", false)
	assert.Contains(t, out, "filter inactive")
	assert.NotContains(t, out, "Deactivate")

	runLine(t, table, "search", false)
	assert.Equal(t, "", table.Params().Query)
}

func TestConsole_ToggleAsksBeforeDeactivating(t *testing.T) {
	table, dir := newOfflineTable(t)
	runLine(t, table, "filter active", false)
	snap := table.Snapshot()
	require.NotEmpty(t, snap.Rows)
	id := snap.Rows[0].UserID

	out := runLine(t, table, "toggle "+id, false)
	assert.Contains(t, out, "cancelled")
	u, err := dir.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, u.Status)

	out = runLine(t, table, "toggle "+id, true)
	assert.Contains(t, out, remote.MockFallbackMessage)
	u, err = dir.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, u.Status)

	out = runLine(t, table, "toggle user-999", true)
	assert.Contains(t, out, `no user "user-999" on this page`)
}

func TestConsole_HelpUnknownQuit(t *testing.T) {
	table, _ := newOfflineTable(t)

	assert.Contains(t, runLine(t, table, "help", false), "Commands:")
	assert.Contains(t, runLine(t, table, "frobnicate", false), `unknown command "frobnicate"`)
	assert.Contains(t, runLine(t, table, "toggle", false), "usage: toggle")

	var out bytes.Buffer
	assert.True(t, runConsoleCommand(context.Background(), table, "quit", nil, &out))
}

func TestRenderTable_Message(t *testing.T) {
	var out bytes.Buffer
	renderTable(&out, usertable.Snapshot{
		Page:    1,
		Status:  models.StatusFilterAll,
		Message: usertable.Message{Kind: usertable.MessageError, Text: usertable.LoadFailedMessage, Retry: true},
	})

	assert.Contains(t, out.String(), "No users found.")
	assert.Contains(t, out.String(), `Failed to load users. Please try again. Type "retry" to try again.`)
}

func TestNewConsoleTable(t *testing.T) {
	cfg := appconfig.Default()
	cfg.Client.BaseURL = "http://127.0.0.1:1/api"
	cfg.Client.Retries = 0
	cfg.Client.Token = "secret"
	cfg.Server.SeedUsers = 12

	table, closeTable, err := newConsoleTable(cfg, nil)
	require.NoError(t, err)
	defer closeTable()

	snap, err := table.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, snap.TotalCount)
}
