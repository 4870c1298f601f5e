package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
	"github.com/EO-DataHub/eodhp-user-admin/internal/events"
	"github.com/EO-DataHub/eodhp-user-admin/models"
)

const reconcilePageSize = 100

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Publish the current status of every user so consumers can resynchronize",
	Run: func(cmd *cobra.Command, args []string) {

		// Load the config and set up logging
		commonSetUp()

		ctx := context.Background()

		store, closeStore, err := openStore(ctx, appCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open user store")
		}
		defer closeStore()

		// Initialize event publisher
		publisher, err := events.NewEventPublisher(appCfg.Pulsar.URL, appCfg.Pulsar.TopicProducer)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize event publisher")
		}
		defer publisher.Close()

		log.Info().Msg("Starting reconciliation process...")

		published, err := publishAllStatuses(ctx, store, publisher, time.Now().UTC())
		if err != nil {
			log.Fatal().Err(err).Int("published", published).Msg("Reconciliation failed")
		}

		log.Info().Int("published", published).Msg("Reconciliation complete")
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

// publishAllStatuses walks every page of store and publishes one event per
// user. It returns the number of events published.
func publishAllStatuses(ctx context.Context, store directory.Store, notifier events.Notifier, at time.Time) (int, error) {
	published := 0
	for page := 1; ; page++ {
		result, err := store.List(ctx, models.ListParams{Page: page, PageSize: reconcilePageSize, Status: models.StatusFilterAll})
		if err != nil {
			return published, err
		}
		for _, u := range result.Users {
			if err := notifier.Notify(models.UserStatusEvent{UserID: u.UserID, Status: u.Status, Timestamp: at}); err != nil {
				return published, err
			}
			published++
		}
		if page*reconcilePageSize >= result.TotalCount {
			return published, nil
		}
	}
}
