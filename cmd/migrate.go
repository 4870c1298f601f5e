package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
)

var seedUsers bool

var migrateCmd = &cobra.Command{
	Use:   "init-db-migrate",
	Short: "Initialize tables and run database migrations",
	Long:  `This job runs the goose migrations and, when asked to, seeds the mock users.`,
	Run: func(cmd *cobra.Command, args []string) {

		// Load the config and set up logging
		commonSetUp()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		userDB, err := openUserDB(ctx, appCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize UserDB")
		}
		defer userDB.Close()

		// Run the migrations
		log.Info().Msgf("Running migrations...")
		if err := userDB.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}

		if seedUsers {
			users := directory.SeedUsers(appCfg.Server.SeedUsers, appCfg.Server.Seed, time.Now())
			if _, err := userDB.Seed(ctx, users); err != nil {
				log.Fatal().Err(err).Msg("Failed to seed users")
			}
		}

		log.Info().Msg("Migrations complete")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&seedUsers, "seed", false, "insert the configured number of mock users")
}
