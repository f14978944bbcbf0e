package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"txdash/internal/backend"
	"txdash/internal/config"
	"txdash/internal/export"
	applog "txdash/internal/log"
	"txdash/internal/seed"
)

type FeedFlags struct {
	SeedURL     string        `name:"seed-url" help:"Seed feed URL." env:"SEED_URL"`
	SeedFile    string        `name:"seed-file" help:"Seed from a local JSON file instead of the URL." env:"SEED_FILE"`
	SeedTimeout time.Duration `name:"seed-timeout" help:"Timeout of one seed attempt." env:"SEED_TIMEOUT" default:"30s"`
	SeedRetries int           `name:"seed-retries" help:"Extra attempts after a transient failure." env:"SEED_MAX_RETRIES" default:"0"`
}

func (f FeedFlags) source() seed.Source {
	url := f.SeedURL
	if url == "" {
		url = config.DefaultSeedURL
	}
	return seed.NewSource(f.SeedFile, url)
}

type exportCmd struct {
	FeedFlags `embed:""`

	Out string `default:"jsonfile:out.json" help:"Where to write [jsonfile:/path/file.json es8:http://elasticsearch:9200 sheets:<spreadsheet id>]"`
	// A memory backend starts empty, so it is always seeded first.
	Seed bool `help:"Seed the backend before exporting."`
}

func (c *exportCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := openBackend(ctx, g)
	if err != nil {
		return err
	}
	defer result.Cleanup()

	if c.Seed || g.Backend == string(backend.MemoryBackend) {
		if err := runSeed(ctx, g, result, c.FeedFlags); err != nil {
			return err
		}
	}

	sink, err := export.ParseSink(ctx, c.Out, g.logger)
	if err != nil {
		return err
	}
	n, err := export.NewExporter(result.Store, g.logger).Export(ctx, sink)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "exported %d transactions to %s\n", n, sink)
	return nil
}

type seedCmd struct {
	FeedFlags `embed:""`
}

func (c *seedCmd) Run(g *Globals) error {
	if g.Backend == string(backend.MemoryBackend) {
		return fmt.Errorf("seeding the memory backend has no lasting effect; use --backend sqlite or postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := openBackend(ctx, g)
	if err != nil {
		return err
	}
	defer result.Cleanup()

	return runSeed(ctx, g, result, c.FeedFlags)
}

func openBackend(ctx context.Context, g *Globals) (*backend.BackendResult, error) {
	cfg := backend.Config{
		Type:         backend.BackendType(g.Backend),
		SQLiteDBPath: g.SQLiteDBPath,
		DatabaseURL:  g.DatabaseURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return backend.NewFactory(g.logger.Logger).CreateBackend(ctx, cfg)
}

func runSeed(ctx context.Context, g *Globals, result *backend.BackendResult, f FeedFlags) error {
	seeder := seed.New(result.Store, f.source(), seed.Options{
		Timeout:    f.SeedTimeout,
		MaxRetries: f.SeedRetries,
		Logger:     g.logger,
	})
	if err := seeder.Run(ctx); err != nil {
		return err
	}
	g.logger.WithComponent(applog.ComponentSeed).InfoContext(ctx, "Backend seeded",
		applog.FieldBackend, g.Backend,
		applog.FieldRecords, seeder.Status().Records)
	return nil
}
