// Package cmd defines the CLI commands for the catalog-etl executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/comixlabs/catalog-etl/internal/archive"
	"github.com/comixlabs/catalog-etl/internal/config"
	"github.com/comixlabs/catalog-etl/internal/logging"
	"github.com/comixlabs/catalog-etl/internal/publish"
	"github.com/comixlabs/catalog-etl/internal/store/postgres"
)

var cfgFile string

// appKeyType is the key for storing the app in the command context.
type appKeyType string

const appKey appKeyType = "app"

// app holds the wired service dependencies shared by subcommands.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  *postgres.Store

	archiver     archive.Provider
	events       publish.Publisher
	gcsClient    *storage.Client
	pubsubClient *pubsub.Client
}

// newApp is the application factory, a variable so tests can swap it.
var newApp = buildApp

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	if cfg.Database.DSN == "" {
		return nil, errors.New("database.dsn is required (CATALOG_DATABASE_DSN)")
	}
	pg, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.ConnLifetime(),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: pg}
	if err := a.initArchive(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) initArchive(ctx context.Context) error {
	switch a.cfg.Archive.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		gcs, err := archive.NewGCS(client, a.cfg.Archive.Bucket, a.cfg.Archive.Prefix)
		if err != nil {
			return fmt.Errorf("init gcs archive: %w", err)
		}
		a.archiver = gcs
	case "local":
		local, err := archive.NewLocal(a.cfg.Archive.Dir)
		if err != nil {
			return fmt.Errorf("init local archive: %w", err)
		}
		a.archiver = local
	case "memory":
		a.archiver = archive.NewMemory()
	default:
		a.archiver = &archive.NoOp{}
	}
	return nil
}

func (a *app) initPublisher(ctx context.Context) error {
	switch a.cfg.Publisher.Provider {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, a.cfg.Publisher.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		a.pubsubClient = client
		a.events = publish.NewPubSub(client)
	case "memory":
		a.events = publish.NewMemory()
	default:
		a.events = publish.NoOp{}
	}
	return nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog-etl",
		Short: "Comic-book catalog ingestion with run provenance and quality guardrails.",
		Long: `catalog-etl pulls comic-book metadata from the Marvel catalog API,
normalizes it into a relational catalog, and records every run in an
append-only audit ledger with pre- and post-load quality checks.`,

		// Wires the app AFTER flags are parsed, BEFORE a subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				a.close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults to CATALOG_* environment)")

	cmd.AddCommand(newInitDBCmd())
	cmd.AddCommand(newMarvelCmd())
	cmd.AddCommand(newQualityCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newCoversCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "catalog-etl: %v\n", err)
		os.Exit(1)
	}
}
