// Package bootstrap wires all dependencies into a running pipeline.
package bootstrap

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/reportgate/adapters/blob"
	"github.com/artpar/reportgate/adapters/clock"
	"github.com/artpar/reportgate/adapters/codec"
	"github.com/artpar/reportgate/adapters/idgen"
	"github.com/artpar/reportgate/adapters/metrics"
	"github.com/artpar/reportgate/adapters/queue"
	"github.com/artpar/reportgate/adapters/sqlite"
	"github.com/artpar/reportgate/app"
	"github.com/artpar/reportgate/config"
	"github.com/artpar/reportgate/ports"
)

// App holds the wired pipeline.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	DB       *sqlite.DB
	Store    ports.HistoryStore
	Queue    ports.DeliveryQueue
	Blob     ports.BlobStore
	Codec    ports.Codec
	Metadata *app.Metadata
	Senders  ports.SenderRegistry
	Router   *app.Router
	Metrics  *metrics.Collector
	Clock    ports.Clock
	IDs      ports.IDGenerator
}

// New wires the application from configuration.
func New(cfg *config.Config) (*App, error) {
	logger := NewLogger(cfg.Logging)
	logger.Info().Msg("initializing reportgate")

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	blobStore, err := blob.NewFileStore(cfg.Blob.Dir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	metadata, err := app.NewMetadata(cfg.Metadata.Dir, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	if cfg.Metadata.Watch {
		if err := metadata.Watch(); err != nil {
			logger.Warn().Err(err).Msg("metadata watch unavailable")
		}
	}

	clk := clock.Real{}
	ids := idgen.UUID{}
	bodyCodec := codec.New()

	var deliveryQueue ports.DeliveryQueue = queue.NewLogQueue(logger)
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
		deliveryQueue = metrics.NewInstrumentedQueue(deliveryQueue, collector)
		metadata.OnReload(func() {
			collector.MetadataReloads.Inc()
			collector.MetadataLastReload.SetToCurrentTime()
		})
		metadata.OnReloadError(func() {
			collector.MetadataReloadErrors.Inc()
		})
		logger.Info().Msg("prometheus metrics enabled")
	}

	store := sqlite.NewHistoryStore(db)
	translator := app.NewTranslator(metadata, metadata, ids, logger)
	router := app.NewRouter(store, deliveryQueue, blobStore, bodyCodec,
		metadata, translator, clk, ids, logger)
	if collector != nil {
		router.SetObserver(collector)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Store:    store,
		Queue:    deliveryQueue,
		Blob:     blobStore,
		Codec:    bodyCodec,
		Metadata: metadata,
		Senders:  metadata,
		Router:   router,
		Metrics:  collector,
		Clock:    clk,
		IDs:      ids,
	}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	a.Metadata.Stop()
	return a.DB.Close()
}

// NewLogger builds the process logger from logging configuration.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
