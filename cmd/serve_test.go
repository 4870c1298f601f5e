package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EO-DataHub/eodhp-user-admin/api/middleware"
	"github.com/EO-DataHub/eodhp-user-admin/api/services"
	"github.com/EO-DataHub/eodhp-user-admin/internal/appconfig"
	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
	"github.com/EO-DataHub/eodhp-user-admin/internal/remote"
	"github.com/EO-DataHub/eodhp-user-admin/models"
)

func newTestServer(t *testing.T, requireAdmin bool) (*httptest.Server, *directory.Directory) {
	t.Helper()

	cfg := appconfig.Default()
	cfg.Server.ListDelay = 0
	cfg.Server.UpdateDelay = 0
	cfg.Server.RequireAdmin = requireAdmin

	dir := directory.NewSeeded(30, 5)
	srv := httptest.NewServer(newRouter(&services.Service{Config: cfg, Store: dir}))
	t.Cleanup(srv.Close)
	return srv, dir
}

func TestRouter_Users(t *testing.T) {
	srv, _ := newTestServer(t, false)

	resp, err := http.Get(srv.URL + "/api/users?pageSize=5&page=2")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	var body models.ListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 30, body.Data.TotalCount)
	require.Len(t, body.Data.Users, 5)
	assert.Equal(t, "user-6", body.Data.Users[0].UserID)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, false)

	resp, err := http.Post(srv.URL+"/api/users", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRouter_RequireAdmin(t *testing.T) {
	srv, dir := newTestServer(t, true)
	before, err := dir.Get("user-1")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/users/user-1", strings.NewReader(`{"status":"inactive"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// listing stays open
	resp2, err := http.Get(srv.URL + "/api/users")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	after, err := dir.Get("user-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRouter_MetricsAndDocs(t *testing.T) {
	srv, _ := newTestServer(t, false)

	for _, p := range []string{"/metrics", "/api/docs/doc.json"} {
		resp, err := http.Get(srv.URL + p)
		require.NoError(t, err, p)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
	}
}

// The remote client and the server agree on the wire format.
func TestRouter_RemoteClientRoundTrip(t *testing.T) {
	srv, dir := newTestServer(t, false)

	client, err := remote.NewClient(srv.URL+"/api", nil, remote.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	ctx := context.Background()
	params := models.ListParams{Page: 1, PageSize: 4, Query: "user 1", Status: models.StatusFilterAll}
	got, err := client.FetchList(ctx, params)
	require.NoError(t, err)
	want, err := dir.List(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, want.TotalCount, got.TotalCount)
	require.Len(t, got.Users, len(want.Users))
	for i := range want.Users {
		assert.Equal(t, want.Users[i].UserID, got.Users[i].UserID)
		assert.True(t, want.Users[i].CreatedAt.Equal(got.Users[i].CreatedAt))
	}

	target := want.Users[0].Status.Toggle()
	res, err := client.UpdateStatus(ctx, want.Users[0].UserID, target)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "User status updated to "+string(target), res.Message)

	stored, err := dir.Get(want.Users[0].UserID)
	require.NoError(t, err)
	assert.Equal(t, target, stored.Status)

	// without a fallback a 404 surfaces as an HTTPError
	_, err = client.UpdateStatus(ctx, "user-999", models.StatusActive)
	var httpErr *remote.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, "User not found", httpErr.Message)
}
