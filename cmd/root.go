package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/EO-DataHub/eodhp-user-admin/db"
	"github.com/EO-DataHub/eodhp-user-admin/internal/appconfig"
	awsclient "github.com/EO-DataHub/eodhp-user-admin/internal/aws"
	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
)

var (
	logLevel   string
	configPath string
	appCfg     *appconfig.Config
)

var rootCmd = &cobra.Command{
	Use:   "user-admin",
	Short: "User Admin",
	Long:  `User Admin serves the users API and provides an interactive console for listing users and changing their status.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn",
		"sets the log level")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to the YAML config file (defaults apply when empty)")
}

// commonSetUp sets up logging and loads the config.
func commonSetUp() {
	setLogging(logLevel)

	var err error
	appCfg, err = appconfig.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
}

func setLogging(level string) {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// databaseSource returns the configured connection string, reading it from
// Secrets Manager when a secret name is set.
func databaseSource(ctx context.Context, cfg *appconfig.Config) (string, error) {
	if cfg.Database.SecretName == "" {
		return cfg.Database.Source, nil
	}

	awsCfg, err := awsclient.LoadAWSConfig(ctx, cfg.AWS.Region)
	if err != nil {
		return "", err
	}
	log.Info().Str("secret", cfg.Database.SecretName).Msg("reading database source from Secrets Manager")
	return awsclient.ResolveDatabaseSource(ctx, awsclient.NewSecretsManagerClient(awsCfg), cfg.Database.SecretName)
}

// openUserDB connects to postgres using the configured source.
func openUserDB(ctx context.Context, cfg *appconfig.Config) (*db.UserDB, error) {
	source, err := databaseSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger := log.With().Str("component", "db").Logger()
	return db.NewUserDB(source, &logger)
}

// openStore returns the user store selected by server.store and a function
// releasing it.
func openStore(ctx context.Context, cfg *appconfig.Config) (directory.Store, func(), error) {
	switch cfg.Server.Store {
	case appconfig.StorePostgres:
		userDB, err := openUserDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return userDB, func() { _ = userDB.Close() }, nil
	default:
		dir := directory.NewSeeded(cfg.Server.SeedUsers, cfg.Server.Seed)
		log.Info().Int("users", dir.Len()).Msg("serving seeded in-memory directory")
		return dir, func() {}, nil
	}
}
