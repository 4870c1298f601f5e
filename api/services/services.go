package services

import (
	"github.com/EO-DataHub/eodhp-user-admin/internal/appconfig"
	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
	"github.com/EO-DataHub/eodhp-user-admin/internal/events"
)

// Service contains all shared dependencies for handlers.
type Service struct {
	Config *appconfig.Config
	Store  directory.Store
	// Publisher is nil when no message broker is configured.
	Publisher events.Notifier
}
