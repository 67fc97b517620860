package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/swiftcheck/config"
	"example.com/swiftcheck/internal/api"
	"example.com/swiftcheck/internal/cache"
	"example.com/swiftcheck/internal/clock"
	"example.com/swiftcheck/internal/metrics"
	"example.com/swiftcheck/internal/models"
	"example.com/swiftcheck/internal/services"
	"example.com/swiftcheck/internal/store"
	"example.com/swiftcheck/internal/token"
	"example.com/swiftcheck/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the check-in API server",
	Long:  `Start the HTTP server that validates scanned ticket tokens and records check-ins`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if cfg.Ticket.UsingDefaultSecret() {
		log.Warn().Msg("Running on the built-in demo secret; set SWIFTCHECK_TICKET_SECRET before any production use")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ticketStore, err := initStore(cfg)
	if err != nil {
		return err
	}

	checkedInCache, err := cache.NewCheckedInCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without the advisory cache")
		checkedInCache, _ = cache.NewCheckedInCache(config.RedisConfig{Enabled: false})
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer, _ = tracing.NewTracer(config.TracingConfig{})
	}

	collector := metrics.NewMetrics()
	collector.SetHealth("store", true)
	collector.SetHealth("cache", checkedInCache.Enabled())

	signer := token.NewSigner(cfg.Ticket.Secret)
	systemClock := clock.NewSystem()

	checkInService := services.NewCheckInService(
		ticketStore, signer, systemClock, checkedInCache, collector, tracer,
		services.WithTokenTTL(cfg.Ticket.TokenTTL),
	)
	issuanceService := services.NewIssuanceService(signer, systemClock)
	importService := services.NewImportService(ticketStore, checkedInCache)

	server := api.NewServer(cfg, checkInService, issuanceService, importService, collector, tracer)

	scheduler, err := startScheduler(ctx, collector, importService)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
		if err := scheduler.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown error")
		}
		if err := checkedInCache.Close(); err != nil {
			log.Error().Err(err).Msg("Cache close error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

func initStore(cfg config.Config) (store.TicketStore, error) {
	switch cfg.Store.Driver {
	case "", "memory":
		log.Info().Msg("Using in-memory ticket store")
		return store.NewMemoryStore(), nil
	case "postgres":
		// TranslateError turns unique-index violations into
		// gorm.ErrDuplicatedKey, which the store maps to ErrAlreadyCheckedIn.
		db, err := gorm.Open(postgres.Open(cfg.Store.DSN), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to database")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "failed to access database pool")
		}
		sqlDB.SetMaxOpenConns(cfg.Store.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Store.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.Store.ConnMaxLifetime)

		if err := models.SetupModels(db); err != nil {
			return nil, err
		}
		log.Info().Msg("Using postgres ticket store")
		return store.NewPostgresStore(db), nil
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// startScheduler runs the operational jobs: the signature-mismatch watchdog
// (a sustained ~100% mismatch rate means the issuance and check-in secrets
// disagree, which no single scan can distinguish from a forged ticket) and a
// periodic occupancy summary.
func startScheduler(ctx context.Context, collector *metrics.Metrics, importer *services.ImportService) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}

	var lastTotal, lastErrors int64
	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			rates := collector.GetErrorRates()[metrics.SignatureVerification]
			total := rates.Total - lastTotal
			errs := rates.Errors - lastErrors
			lastTotal, lastErrors = rates.Total, rates.Errors

			const minSample = 10
			if total >= minSample && float64(errs)/float64(total) >= 0.99 {
				log.Error().
					Int64("window_scans", total).
					Int64("window_mismatches", errs).
					Msg("Nearly all signature verifications are failing; issuance and check-in secrets likely disagree")
			}
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to schedule signature watchdog")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			stats, err := importer.Stats(ctx)
			if err != nil {
				return
			}
			log.Info().
				Int("checked_in", stats.CheckedIn).
				Int("total_seats", stats.TotalSeats).
				Float64("occupancy_rate", stats.OccupancyRate).
				Msg("Occupancy summary")
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to schedule occupancy summary")
	}

	scheduler.Start()
	return scheduler, nil
}
