package directory

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/EO-DataHub/eodhp-user-admin/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUsers() []models.User {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.User{
		{UserID: "u1", Name: "Alice Smith", Email: "alice@example.com", Status: models.StatusActive, CreatedAt: created},
		{UserID: "u2", Name: "Bob Jones", Email: "bob@corp.io", Status: models.StatusInactive, CreatedAt: created},
		{UserID: "u3", Name: "Carol", Email: "carol.SMITH@example.com", Status: models.StatusActive, CreatedAt: created,
			Groups: []models.Group{{Name: "admins"}}},
		{UserID: "u4", Name: "Dan", Email: "dan@corp.io", Status: models.StatusActive, CreatedAt: created},
	}
}

func ids(users []models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.UserID)
	}
	return out
}

func TestList_FiltersByQueryCaseInsensitive(t *testing.T) {
	d, err := New(testUsers()...)
	require.NoError(t, err)

	res, err := d.List(context.Background(), models.ListParams{Page: 1, PageSize: 10, Query: "SMITH"})
	require.NoError(t, err)

	assert.Equal(t, []string{"u1", "u3"}, ids(res.Users))
	assert.Equal(t, 2, res.TotalCount)
}

func TestList_QueryMatchesEmail(t *testing.T) {
	d, err := New(testUsers()...)
	require.NoError(t, err)

	res, err := d.List(context.Background(), models.ListParams{Page: 1, PageSize: 10, Query: "corp.io"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u4"}, ids(res.Users))
}

func TestList_FiltersByStatus(t *testing.T) {
	d, err := New(testUsers()...)
	require.NoError(t, err)

	res, err := d.List(context.Background(), models.ListParams{Page: 1, PageSize: 10, Status: models.StatusFilterInactive})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, ids(res.Users))

	res, err = d.List(context.Background(), models.ListParams{Page: 1, PageSize: 10, Status: models.StatusFilterAll})
	require.NoError(t, err)
	assert.Len(t, res.Users, 4)
}

func TestList_QueryAndStatusCombined(t *testing.T) {
	d, err := New(testUsers()...)
	require.NoError(t, err)

	res, err := d.List(context.Background(), models.ListParams{Page: 1, PageSize: 10, Query: "corp", Status: models.StatusFilterActive})
	require.NoError(t, err)
	assert.Equal(t, []string{"u4"}, ids(res.Users))
	assert.Equal(t, 1, res.TotalCount)
}

func TestList_Pagination(t *testing.T) {
	d := NewSeeded(25, 1)

	page1, err := d.List(context.Background(), models.ListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	page3, err := d.List(context.Background(), models.ListParams{Page: 3, PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, "user-1", page1.Users[0].UserID)
	assert.Len(t, page1.Users, 10)
	assert.Equal(t, []string{"user-21", "user-22", "user-23", "user-24", "user-25"}, ids(page3.Users))
	assert.Equal(t, 25, page1.TotalCount)
	assert.Equal(t, 25, page3.TotalCount)
}

func TestList_PageBeyondRange(t *testing.T) {
	d := NewSeeded(5, 1)

	res, err := d.List(context.Background(), models.ListParams{Page: 4, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Users)
	assert.NotNil(t, res.Users)
	assert.Equal(t, 5, res.TotalCount)
}

func TestList_HugePage(t *testing.T) {
	d := NewSeeded(5, 1)

	assert.NotPanics(t, func() {
		_, err := d.List(context.Background(), models.ListParams{Page: 1 << 62, PageSize: 4, Status: models.StatusFilterAll})
		assert.Error(t, err)
	})
}

func TestPaginate_HugePage(t *testing.T) {
	users := SeedUsers(5, 1, time.Now())

	assert.NotPanics(t, func() {
		res := Paginate(users, 1<<62, 4)
		assert.Empty(t, res.Users)
		assert.Equal(t, 5, res.TotalCount)
	})

	res := Paginate(users, 2, 4)
	assert.Equal(t, []string{"user-5"}, ids(res.Users))
	assert.Empty(t, Paginate(users, 3, 4).Users)
	assert.Empty(t, Paginate(nil, 1, 4).Users)
}

func TestList_EmptyDirectory(t *testing.T) {
	d, err := New()
	require.NoError(t, err)

	res, err := d.List(context.Background(), models.ListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Users)
	assert.Equal(t, 0, res.TotalCount)
}

func TestList_RejectsInvalidParams(t *testing.T) {
	d := NewSeeded(5, 1)

	_, err := d.List(context.Background(), models.ListParams{Page: 1, PageSize: 0})
	assert.Error(t, err)
	_, err = d.List(context.Background(), models.ListParams{Page: 0, PageSize: 10})
	assert.Error(t, err)
}

func TestList_PageSizeInvariant(t *testing.T) {
	d := NewSeeded(57, 42)
	all, err := d.List(context.Background(), models.ListParams{Page: 1, PageSize: 1000})
	require.NoError(t, err)

	for _, filter := range []models.StatusFilter{models.StatusFilterAll, models.StatusFilterActive, models.StatusFilterInactive} {
		for _, query := range []string{"", "1", "user5", "EXAMPLE"} {
			matching := 0
			for _, u := range all.Users {
				if filter.Matches(u.Status) && (query == "" ||
					containsFold(u.Name, query) || containsFold(u.Email, query)) {
					matching++
				}
			}
			for _, size := range []int{1, 7, 10} {
				for page := 1; page <= 10; page++ {
					name := fmt.Sprintf("%s/%q/%d/%d", filter, query, size, page)
					res, err := d.List(context.Background(), models.ListParams{Page: page, PageSize: size, Query: query, Status: filter})
					require.NoError(t, err, name)
					assert.LessOrEqual(t, len(res.Users), size, name)
					assert.Equal(t, matching, res.TotalCount, name)
				}
			}
		}
	}
}

func TestList_DoesNotExposeInternalState(t *testing.T) {
	d, err := New(testUsers()...)
	require.NoError(t, err)

	res, err := d.List(context.Background(), models.ListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	res.Users[0].Status = models.StatusInactive
	res.Users[2].Groups[0].Name = "changed"

	u1, err := d.Get("u1")
	require.NoError(t, err)
	u3, err := d.Get("u3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, u1.Status)
	assert.Equal(t, "admins", u3.Groups[0].Name)
}

func TestUpdateStatus_RoundTrip(t *testing.T) {
	d, err := New(testUsers()...)
	require.NoError(t, err)

	updated, err := d.UpdateStatus(context.Background(), "u1", models.StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, updated.Status)
	assert.Equal(t, "Alice Smith", updated.Name)

	res, err := d.List(context.Background(), models.ListParams{Page: 1, PageSize: 10, Query: "alice"})
	require.NoError(t, err)
	require.Len(t, res.Users, 1)
	assert.Equal(t, models.StatusInactive, res.Users[0].Status)
	assert.Equal(t, "alice@example.com", res.Users[0].Email)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	d, err := New(testUsers()...)
	require.NoError(t, err)

	_, err = d.UpdateStatus(context.Background(), "missing", models.StatusActive)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	d, err := New(testUsers()...)
	require.NoError(t, err)

	_, err = d.UpdateStatus(context.Background(), "u1", models.Status("banned"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNew_RejectsDuplicateIDs(t *testing.T) {
	users := testUsers()
	users = append(users, models.User{UserID: "u1", Status: models.StatusActive})

	_, err := New(users...)
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	d, err := New(testUsers()...)
	require.NoError(t, err)

	assert.True(t, d.Remove("u2"))
	assert.False(t, d.Remove("u2"))
	assert.Equal(t, 3, d.Len())

	_, err = d.UpdateStatus(context.Background(), "u2", models.StatusActive)
	assert.ErrorIs(t, err, ErrNotFound)

	// index stays consistent after the shift
	u4, err := d.UpdateStatus(context.Background(), "u4", models.StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, "Dan", u4.Name)
}

func TestSeedUsers_Deterministic(t *testing.T) {
	now := time.Now()
	a := SeedUsers(100, 7, now)
	b := SeedUsers(100, 7, now)

	assert.Equal(t, a, b)
	assert.Equal(t, "user-100", a[99].UserID)
	assert.Equal(t, "User 100", a[99].Name)
	assert.Equal(t, "user100@example.com", a[99].Email)
	assert.NotNil(t, a[0].Groups)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
