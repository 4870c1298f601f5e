package querycache

import (
	"context"

	"github.com/EO-DataHub/eodhp-user-admin/models"
)

// MutateStatus changes a user's status with an optimistic cache update.
//
// In order it cancels every in-flight load, snapshots every cached
// listing, patches the user's status into each listing that contains it,
// calls the backend, restores the snapshots verbatim if that call fails,
// and finally marks every listing stale. The patch is visible to readers
// before the backend is called.
//
// Mutations are serialized; a second call waits for the first to settle.
func (c *Cache) MutateStatus(ctx context.Context, userID string, status models.Status) (models.UpdateStatusResult, error) {
	c.mutateMu.Lock()
	defer c.mutateMu.Unlock()

	snap := c.patch(userID, status)

	result, err := c.fetcher.UpdateStatus(ctx, userID, status)

	c.mu.Lock()
	defer c.mu.Unlock()

	logger := c.log.With().Str("user_id", userID).Str("status", string(status)).Logger()
	if err != nil {
		c.restoreLocked(snap)
		mutationsTotal.WithLabelValues("rolled_back").Inc()
		logger.Warn().Err(err).Int("entries", len(snap.entries)).Msg("status update failed, optimistic update rolled back")
	} else {
		mutationsTotal.WithLabelValues("success").Inc()
		logger.Debug().Str("message", result.Message).Msg("status update confirmed")
	}

	c.invalidateLocked()
	return result, err
}

// snapshot is the cached state a failed mutation restores.
type snapshot struct {
	entries     map[string]models.ListResult
	placeholder *models.ListResult
}

// patch cancels in-flight loads, snapshots every cached listing and the
// placeholder, and applies the optimistic status change. It returns the
// snapshot.
func (c *Cache) patch(userID string, status models.Status) snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		c.cancelFlightLocked(e)
	}

	snap := snapshot{entries: make(map[string]models.ListResult, len(c.entries))}
	for key, e := range c.entries {
		if e.hasData {
			snap.entries[key] = e.result.Clone()
		}
	}
	if c.placeholder != nil {
		p := c.placeholder.Clone()
		snap.placeholder = &p
		patchUserStatus(c.placeholder, userID, status)
	}

	for _, e := range c.entries {
		if !e.hasData {
			continue
		}
		if patchUserStatus(&e.result, userID, status) {
			e.state = StateFresh
			e.optimistic = true
		}
	}
	return snap
}

func (c *Cache) restoreLocked(snap snapshot) {
	if snap.placeholder != nil {
		p := snap.placeholder.Clone()
		c.placeholder = &p
	}
	for key, result := range snap.entries {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		e.result = result.Clone()
		e.hasData = true
		e.optimistic = false
	}
}

// patchUserStatus sets the status of userID inside result, leaving the
// total and every other record untouched.
func patchUserStatus(result *models.ListResult, userID string, status models.Status) bool {
	patched := false
	for i := range result.Users {
		if result.Users[i].UserID == userID {
			result.Users[i].Status = status
			patched = true
		}
	}
	return patched
}
