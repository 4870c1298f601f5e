package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/EO-DataHub/eodhp-user-admin/internal/events"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the Pulsar consumer that logs user status changes",
	Run: func(cmd *cobra.Command, args []string) {

		// Load the config and set up logging
		commonSetUp()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Initialize event consumer
		consumer, err := events.NewEventConsumer(appCfg.Pulsar.URL, appCfg.Pulsar.TopicConsumer, appCfg.Pulsar.Subscription)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize event consumer")
		}
		defer consumer.Close()

		log.Info().Str("topic", appCfg.Pulsar.TopicConsumer).Msg("Waiting for messages...")

		// Consume messages
		for {
			event, msg, err := consumer.ReceiveStatusEvent(ctx)
			if ctx.Err() != nil {
				return
			}
			if msg == nil {
				log.Error().Err(err).Msg("Error receiving message")
				continue
			}
			if err != nil {
				// malformed events go to the dead letter topic after redelivery
				log.Error().Err(err).Str("payload", string(msg.Payload())).Msg("Error decoding message")
				consumer.Nack(msg)
				continue
			}

			log.Info().
				Str("user_id", event.UserID).
				Str("status", string(event.Status)).
				Time("changed_at", event.Timestamp).
				Msg("user status changed")
			consumer.Ack(msg)
		}
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
