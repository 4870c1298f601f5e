package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/EO-DataHub/eodhp-user-admin/api/handlers"
	"github.com/EO-DataHub/eodhp-user-admin/api/middleware"
	"github.com/EO-DataHub/eodhp-user-admin/api/services"
	docs "github.com/EO-DataHub/eodhp-user-admin/docs"
	"github.com/EO-DataHub/eodhp-user-admin/internal/events"
)

var (
	host string
	port int
)

// @title EODHP User Admin API
// @version v1
// @description Lists users and changes their status.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server for the users API",
	Run: func(cmd *cobra.Command, args []string) {

		// Load the config and set up logging
		commonSetUp()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := openStore(ctx, appCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open user store")
		}
		defer closeStore()

		service := &services.Service{
			Config: appCfg,
			Store:  store,
		}

		// Initialize event publisher
		if appCfg.Pulsar.URL != "" {
			publisher, err := events.NewEventPublisher(appCfg.Pulsar.URL, appCfg.Pulsar.TopicProducer)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to initialize event publisher")
			}
			defer publisher.Close()
			service.Publisher = publisher
		} else {
			log.Info().Msg("pulsar url not set, status events are not published")
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           otelhttp.NewHandler(newRouter(service), "user-admin"),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("graceful shutdown failed")
			}
		}()

		log.Info().Msg(fmt.Sprintf("Server started at %s:%d", host, port))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("could not start server")
		}
		log.Info().Msg("Server stopped")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&host, "host", "0.0.0.0", "host to run the server on")
	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run the server on")
}

// newRouter registers the users API, metrics and docs routes.
func newRouter(service *services.Service) *mux.Router {
	cfg := service.Config
	r := mux.NewRouter()

	// Register the routes
	api := r.PathPrefix(cfg.BasePath).Subrouter()

	// Apply the middleware to the API routes
	api.Use(middleware.WithLogger)

	var updateStatus http.Handler = handlers.UpdateUserStatus(service)
	if cfg.Server.RequireAdmin {
		updateStatus = middleware.JWTMiddleware(updateStatus)
	}

	// User routes
	api.HandleFunc("/users", handlers.ListUsers(service)).Methods(http.MethodGet)
	api.Handle("/users/{user-id}", updateStatus).Methods(http.MethodPatch)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Docs
	docs.SwaggerInfo.Host = cfg.Host
	docs.SwaggerInfo.BasePath = cfg.BasePath
	r.PathPrefix(cfg.DocsPath).Handler(httpSwagger.Handler(
		httpSwagger.URL(path.Join(cfg.DocsPath, "/doc.json")),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	)).Methods(http.MethodGet)

	return r
}
