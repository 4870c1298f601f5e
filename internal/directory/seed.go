package directory

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/EO-DataHub/eodhp-user-admin/models"
)

// activeRatio is the share of seeded users created as active.
const activeRatio = 0.7

// SeedUsers generates n mock users named user-1..user-n. The status mix is
// drawn from a generator seeded with seed so runs are reproducible.
func SeedUsers(n int, seed int64, createdAt time.Time) []models.User {
	rng := rand.New(rand.NewSource(seed))
	users := make([]models.User, 0, n)
	for i := 1; i <= n; i++ {
		status := models.StatusInactive
		if rng.Float64() < activeRatio {
			status = models.StatusActive
		}
		users = append(users, models.User{
			UserID:    fmt.Sprintf("user-%d", i),
			Name:      fmt.Sprintf("User %d", i),
			Email:     fmt.Sprintf("user%d@example.com", i),
			Status:    status,
			CreatedAt: createdAt.UTC(),
			Groups:    []models.Group{},
		})
	}
	return users
}

// NewSeeded returns a directory populated by SeedUsers.
func NewSeeded(n int, seed int64) *Directory {
	d, err := New(SeedUsers(n, seed, time.Now())...)
	if err != nil {
		// generated IDs are unique
		panic(err)
	}
	return d
}
