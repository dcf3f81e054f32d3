// Package main - точка входа фонового процесса termcycle.
//
// Worker отвечает за:
// - ежегодный rollover семестров (продление окна и удаление пустых семестров)
// - дозаполнение дат начала семестров по академическому календарю
// - периодическую перезагрузку календаря
// - служебные HTTP эндпоинты (health, readiness, ручной запуск задач)
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

	"github.com/campusnote/termcycle/config"
	"github.com/campusnote/termcycle/internal/application/command"
	"github.com/campusnote/termcycle/internal/domain/calendar"
	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/internal/infrastructure/external/calendarfeed"
	"github.com/campusnote/termcycle/internal/infrastructure/persistence/postgres"
	"github.com/campusnote/termcycle/internal/infrastructure/persistence/redis"
	"github.com/campusnote/termcycle/internal/infrastructure/scheduler"
	"github.com/campusnote/termcycle/internal/infrastructure/scheduler/jobs"
	ophttp "github.com/campusnote/termcycle/internal/interface/http"
	"github.com/campusnote/termcycle/internal/interface/http/handlers"
	"github.com/campusnote/termcycle/pkg/logger"
	"github.com/campusnote/termcycle/pkg/timeutil"
)

// version задаётся при сборке через -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// Корневой контекст отменяется по SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Level:     logger.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		AddCaller: !cfg.IsDevelopment(),
	}).With("app", cfg.App.Name)
	defer log.Sync()

	log.Info("starting termcycle worker",
		"version", version,
		"env", string(cfg.App.Environment),
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRESQL + МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	dbCfg := postgres.DefaultConfig(cfg.Database.URL)
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns
	dbCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	dbConn, err := postgres.NewConnection(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		dbConn.Close()
	}()
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		if _, err := dbConn.Migrate(log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	store := postgres.NewStore(dbConn)

	health := handlers.NewCompositeHealthChecker(version)
	health.AddCheck("postgres", handlers.NewPingCheck(dbConn))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально, журнал запусков задач)
	// ─────────────────────────────────────────────────────────────────────────
	var ledger *redis.RunLedger
	if cfg.Redis.Enabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Addr = cfg.Redis.Addr
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB

		cache, err := redis.NewCache(ctx, redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, run ledger disabled", logger.KeyError, err)
		} else {
			defer cache.Close()
			ledger = redis.NewRunLedger(cache)
			health.AddCheck("redis", handlers.NewPingCheck(cache))
			log.Info("Redis connection established", "addr", redisCfg.Addr)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. АКАДЕМИЧЕСКИЙ КАЛЕНДАРЬ
	// ─────────────────────────────────────────────────────────────────────────
	holder, err := openCalendar(ctx, cfg, log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ОБРАБОТЧИКИ И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{Location: cfg.App.Location}
	resolver := term.NewStartResolver(nil)
	if holder != nil {
		resolver = term.NewStartResolver(holder)
	}
	provisioner := command.NewProvisionTermsHandler(store, resolver, command.ProvisionTermsHandlerConfig{
		FirstYear:  cfg.Provision.FirstYear,
		YearsAhead: cfg.Provision.YearsAhead,
		Clock:      clock,
	}, log)

	sched := scheduler.New(scheduler.Config{
		Logger:     log,
		Timezone:   cfg.App.Location,
		JobTimeout: cfg.Scheduler.JobTimeout,
	})
	if err := registerJobs(sched, cfg, store, provisioner, holder, clock, log); err != nil {
		return err
	}
	if ledger != nil {
		sched.OnJobComplete(recordRun(ledger, log))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ЗАПУСК
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		log.Warn("scheduler disabled, jobs run only on demand")
	}

	var (
		server   *ophttp.Server
		serverCh <-chan error
	)
	if cfg.HTTP.Enabled {
		deps := ophttp.Dependencies{Jobs: sched, Health: health, Logger: log}
		if holder != nil {
			deps.Calendar = holder
		}
		if ledger != nil {
			deps.Ledger = ledger
		}
		httpCfg := ophttp.DefaultConfig()
		httpCfg.Addr = cfg.HTTP.Addr
		server = ophttp.NewServer(httpCfg, deps)
		serverCh = server.StartAsync()
	}

	log.Info("termcycle worker is running", "jobs", len(sched.ListJobs()))

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-serverCh:
		if err != nil {
			log.Error("http server stopped", logger.KeyError, err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http server shutdown failed", logger.KeyError, err)
		}
	}
	if sched.IsRunning() {
		done := make(chan struct{})
		go func() {
			_ = sched.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Warn("jobs did not stop in time")
		}
	}

	log.Info("shutdown completed")
	return nil
}

// openCalendar загружает календарь. Без источника возвращает nil:
// все даты берутся из статической таблицы.
func openCalendar(ctx context.Context, cfg *config.Config, log *logger.Logger) (*calendar.Holder, error) {
	if cfg.Calendar.Source == "" {
		log.Warn("no calendar source configured, using fallback start dates")
		return nil, nil
	}

	src, err := calendarfeed.Open(calendarfeed.Config{
		Location: cfg.Calendar.Source,
		Format:   calendarfeed.Format(cfg.Calendar.Format),
		Sheet:    cfg.Calendar.Sheet,
		Timeout:  cfg.Calendar.FetchTimeout,
		Timezone: cfg.App.Location,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open calendar source: %w", err)
	}

	holder := calendar.NewHolder(src, cfg.Calendar.StartMarker, log)
	snap, err := holder.Reload(ctx)
	if err != nil {
		// Недоступный календарь не фатален: работаем на запасных датах.
		log.Warn("failed to load calendar, using fallback start dates", logger.KeyError, err)
	} else {
		log.Info("calendar loaded", "format", string(src.Format()), "keys", snap.Len())
	}
	return holder, nil
}

func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	store *postgres.Store,
	provisioner *command.ProvisionTermsHandler,
	holder *calendar.Holder,
	clock timeutil.Clock,
	log *logger.Logger,
) error {
	rolloverSchedule, err := scheduler.ParseCron(cfg.Scheduler.RolloverCron, cfg.App.Location)
	if err != nil {
		return err
	}
	rollover := jobs.NewTermRolloverJob(store, store, provisioner, jobs.TermRolloverConfig{
		Concurrency: cfg.Rollover.Concurrency,
		Clock:       clock,
	}, log)
	if err := sched.Register(rollover, rolloverSchedule); err != nil {
		return err
	}

	backfill := jobs.NewTermBackfillJob(store, provisioner, cfg.Rollover.Concurrency, log)
	if err := sched.Register(backfill, scheduler.NewIntervalSchedule(cfg.Scheduler.BackfillInterval)); err != nil {
		return err
	}

	if holder != nil {
		reload := jobs.NewCalendarReloadJob(holder, log)
		if err := sched.Register(reload, scheduler.NewIntervalSchedule(cfg.Scheduler.CalendarReloadInterval)); err != nil {
			return err
		}
	}
	return nil
}

// recordRun сохраняет результат каждого запуска в журнал Redis.
func recordRun(ledger *redis.RunLedger, log *logger.Logger) func(scheduler.JobResult) {
	return func(res scheduler.JobResult) {
		rec, err := redis.NewRunRecord(res.JobName, res.StartedAt, res.CompletedAt, res.Manual, res.Error, res.Report)
		if err != nil {
			log.Warn("failed to encode job run", logger.KeyJob, res.JobName, logger.KeyError, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ledger.Record(ctx, rec); err != nil {
			log.Warn("failed to record job run", logger.KeyJob, res.JobName, logger.KeyError, err)
		}
	}
}
