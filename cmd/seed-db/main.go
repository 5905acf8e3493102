// Command seed-db loads the lookup rows joined by purchase views (creditors,
// employees, users and inventory) from a JSON fixture.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/clinic-purchase/internal/bid"
	"github.com/xenking/clinic-purchase/internal/storage/postgres"
)

type config struct {
	DatabaseURL   string `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url" env:"DATABASE_URL"`
	ReferenceFile string `default:"db/seed/reference.json" usage:"Path to the reference data JSON file" flag:"reference-file" env:"REFERENCE_FILE"`
}

func main() {
	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	var cfg config
	if err := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFiles: true,
		EnvPrefix: "CLINIC",
	}).Load(); err != nil {
		lg.Fatal("Load config", zap.Error(err))
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		cancel()
		os.Exit(1)
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	data, err := loadReferenceData(cfg.ReferenceFile)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	refs := postgres.NewReferenceRepository(postgres.NewGateway(pool))
	if err := refs.Upsert(ctx, data); err != nil {
		return errors.Wrap(err, "upsert reference data")
	}
	lg.Info("Upserted reference data",
		zap.Int("creditors", len(data.Creditors)),
		zap.Int("employees", len(data.Employees)),
		zap.Int("users", len(data.Users)),
		zap.Int("inventory", len(data.Inventory)),
	)
	return nil
}

// loadReferenceData reads and checks the fixture file.
func loadReferenceData(path string) (postgres.ReferenceData, error) {
	var data postgres.ReferenceData
	raw, err := os.ReadFile(path)
	if err != nil {
		return data, errors.Wrap(err, "read reference file")
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, errors.Wrap(err, "parse reference JSON")
	}

	for _, c := range data.Creditors {
		if _, err := bid.FromText(c.UUID); err != nil {
			return data, errors.Wrapf(err, "creditor %q", c.UUID)
		}
	}
	for _, it := range data.Inventory {
		if _, err := bid.FromText(it.UUID); err != nil {
			return data, errors.Wrapf(err, "inventory %q", it.UUID)
		}
	}
	return data, nil
}
