// Command purchase-import creates purchase orders from a JSON-lines file,
// plain or gzip-compressed, skipping references that are already stored.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/clinic-purchase/internal/domain/purchase"
	"github.com/xenking/clinic-purchase/internal/importer"
	"github.com/xenking/clinic-purchase/internal/storage/postgres"
)

type config struct {
	DatabaseURL string `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url" env:"DATABASE_URL"`
	File        string `usage:"JSON-lines input file, optionally gzip-compressed" flag:"file" env:"FILE"`
	Workers     int    `default:"4" usage:"Concurrent inserts" flag:"workers" env:"WORKERS"`
	Verbose     bool   `default:"false" usage:"Log every record" flag:"verbose" env:"VERBOSE"`
}

func main() {
	var cfg config
	if err := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFiles: true,
		EnvPrefix: "CLINIC",
	}).Load(); err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	lg, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	summary, err := run(ctx, lg, cfg)
	fmt.Printf("created=%d skipped=%d failed=%d read=%d\n",
		summary.Created, summary.Skipped, summary.Failed, summary.Read)
	if err != nil {
		lg.Error("Import failed", zap.Error(err))
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, lg *zap.Logger, cfg config) (importer.Summary, error) {
	if cfg.DatabaseURL == "" {
		return importer.Summary{}, errors.New("database URL is required: set --database-url or DATABASE_URL")
	}
	if cfg.File == "" {
		return importer.Summary{}, errors.New("input file is required: set --file")
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return importer.Summary{}, errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return importer.Summary{}, errors.Wrap(err, "run migrations")
	}

	svc, err := purchase.NewService(postgres.NewPurchaseRepository(postgres.NewGateway(pool)))
	if err != nil {
		return importer.Summary{}, errors.Wrap(err, "create purchase service")
	}

	lg.Info("Importing", zap.String("file", cfg.File), zap.Int("workers", cfg.Workers))
	im := importer.New(svc,
		importer.WithWorkers(cfg.Workers),
		importer.WithLogger(lg),
	)
	return im.ImportFile(ctx, cfg.File)
}
