package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/catalogsync/internal/config"
	"github.com/danmuck/catalogsync/internal/logging"
	"github.com/danmuck/catalogsync/internal/observability"
	"github.com/danmuck/catalogsync/internal/server"
	"github.com/danmuck/catalogsync/internal/sim"
	"github.com/rs/zerolog"
)

type options struct {
	config  string
	catalog string
	ticks   int
	admin   string
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.config, "config", "", "run config path (toml)")
	flag.StringVar(&opts.catalog, "catalog", "", "catalog config path; overrides the run config")
	flag.IntVar(&opts.ticks, "ticks", 0, "ticks to simulate; overrides the run config")
	flag.StringVar(&opts.admin, "admin", "", "admin listen address; overrides the run config")
	flag.Parse()
	return opts
}

func main() {
	logging.ConfigureRuntime()
	logger := observability.InitLogger("catalogctl")
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, parseFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "catalogctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger zerolog.Logger, opts options) error {
	cfg := defaultRunConfig()
	if opts.config != "" {
		loaded, err := loadRunConfig(opts.config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if opts.catalog != "" {
		cfg.CatalogPath = opts.catalog
	}
	if opts.ticks > 0 {
		cfg.Ticks = opts.ticks
	}
	if opts.admin != "" {
		cfg.AdminAddr = opts.admin
	}

	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	lb, err := sim.New(catalog, sim.Options{
		Ticks:         cfg.Ticks,
		JoinTick:      cfg.JoinTick,
		ConsumerOrder: cfg.ConsumerOrder,
		Interval:      cfg.Interval,
	})
	if err != nil {
		return err
	}
	logger.Info().
		Str("catalog", catalog.Name).
		Int("lists", len(catalog.Lists)).
		Int("payloads", len(catalog.Payloads)).
		Int("ticks", lb.Ticks()).
		Int("join_tick", cfg.JoinTick).
		Msg("catalogctl starting")

	if cfg.AdminAddr == "" {
		reports, err := lb.Run(ctx)
		logSummary(logger, reports)
		return err
	}
	return serveWithAdmin(ctx, logger, lb, cfg)
}

func loadCatalog(path string) (config.CatalogConfig, error) {
	if path != "" {
		return config.LoadCatalogConfig(path)
	}
	tmpl, err := config.Template("catalog")
	if err != nil {
		return config.CatalogConfig{}, err
	}
	return config.ParseCatalogConfig([]byte(tmpl))
}

// serveWithAdmin runs the simulation under the admin lock, then keeps the
// admin server up until ctx is done.
func serveWithAdmin(ctx context.Context, logger zerolog.Logger, lb *sim.Loopback, cfg runConfig) error {
	admin := server.Appear("catalogctl", cfg.AdminAddr, cfg.CorsOrigins)
	admin.AttachSide("producer", lb.Producer().Lists())
	admin.AttachSide("consumer", lb.Consumer().Lists())
	admin.RegisterAction("step", func() (string, error) {
		r, err := lb.Step()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("tick=%d updates=%d bytes=%d", r.Tick, r.Updates+r.FullUpdates, r.Bytes), nil
	})
	admin.RegisterAction("verify", func() (string, error) {
		if err := lb.Verify(); err != nil {
			return "", err
		}
		return "in sync", nil
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- admin.Serve(ctx)
	}()

	var reports []sim.TickReport
	for {
		var (
			report sim.TickReport
			done   bool
		)
		err := admin.Guard(func() error {
			if lb.Done() {
				done = true
				return nil
			}
			var err error
			report, err = lb.Step()
			return err
		})
		if err != nil {
			cancel()
			<-serveErr
			return err
		}
		if done {
			break
		}
		reports = append(reports, report)
		if !wait(ctx, cfg.Interval) {
			break
		}
	}
	logSummary(logger, reports)
	if err := admin.Guard(lb.Verify); err != nil {
		logger.Error().Err(err).Msg("consumer diverged")
	}

	err := <-serveErr
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func logSummary(logger zerolog.Logger, reports []sim.TickReport) {
	var records, bytes, additions, changes int
	for _, r := range reports {
		records += r.FullUpdates + r.Updates
		bytes += r.Bytes
		additions += r.Additions
		changes += r.Changes
	}
	logger.Info().
		Int("ticks", len(reports)).
		Int("records", records).
		Int("additions", additions).
		Int("changes", changes).
		Int("bytes", bytes).
		Msg("catalogctl summary")
}
