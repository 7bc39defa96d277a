// Package server wires the birdwatch remote service: PostgreSQL storage,
// photo presigning, species lookups, the HTTP API and the live chat hub.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/dmitrijs2005/birdwatch/internal/server/chathub"
	"github.com/dmitrijs2005/birdwatch/internal/server/config"
	"github.com/dmitrijs2005/birdwatch/internal/server/httpapi"
	"github.com/dmitrijs2005/birdwatch/internal/server/lookup"
	"github.com/dmitrijs2005/birdwatch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/birdwatch/internal/server/services"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	hub    *chathub.Hub
	server *http.Server
}

// NewApp connects to PostgreSQL, applies migrations and builds the HTTP
// server. Nothing listens until Run.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	enricher := lookup.New(lookup.Config{
		SparqlEndpoint: c.SparqlEndpoint,
		MapURLTemplate: c.MapURLTemplate,
		Timeout:        c.LookupTimeout,
	}, &http.Client{Timeout: c.LookupTimeout}, logger)

	images := services.NewImageStore(c)
	sightings := services.NewSightingService(db, rm, images, enricher, logger)
	chats := services.NewChatService(db, rm)
	hub := chathub.NewHub(chats, logger)

	api := httpapi.New(sightings, chats, images, http.HandlerFunc(hub.ServeWS), httpapi.Options{
		WriteRateLimit:  c.WriteRateLimit,
		MaxRequestBytes: c.MaxRequestBytes,
		Health:          db.PingContext,
	}, logger)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		hub:    hub,
		server: &http.Server{
			Addr:              c.EndpointAddr,
			Handler:           api.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a signal arrives, then shuts the
// HTTP server down, stops the hub and closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)
	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return app.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	app.logger.Info(context.Background(), "server stopped")
	return err
}
