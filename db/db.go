package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrations embed.FS

type UserDB struct {
	DB  *sql.DB
	Log *zerolog.Logger
}

// NewUserDB opens and pings the postgres database at source.
func NewUserDB(source string, log *zerolog.Logger) (*UserDB, error) {
	if source == "" {
		log.Error().Msg("database source is not set")
		return nil, errors.New("database source is not set")
	}

	// Open the database connection
	db, err := sql.Open("postgres", source)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database connection")
		return nil, err
	}

	// Check we are actually connected
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Database connection failed during ping")
		_ = db.Close()
		return nil, err
	}

	return &UserDB{DB: db, Log: log}, nil
}

func (u *UserDB) Close() error {
	if err := u.DB.Close(); err != nil {
		return err
	}
	u.Log.Info().Msg("database connection closed")
	return nil
}

// Migrate applies the embedded goose migrations.
func (u *UserDB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, u.DB, "migrations"); err != nil {
		u.Log.Error().Err(err).Msg("failed to apply migrations")
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, u.DB)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	u.Log.Info().Int64("version", version).Msg("database migrated")
	return nil
}
