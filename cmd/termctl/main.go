// Command termctl runs termcycle operations by hand: schema migration,
// provisioning an owner, resolving the current term, week outlines, and
// one-off rollover or backfill runs. Results are printed as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusnote/termcycle/config"
	"github.com/campusnote/termcycle/internal/application/command"
	"github.com/campusnote/termcycle/internal/application/query"
	"github.com/campusnote/termcycle/internal/domain/calendar"
	"github.com/campusnote/termcycle/internal/domain/shared"
	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/internal/infrastructure/external/calendarfeed"
	"github.com/campusnote/termcycle/internal/infrastructure/persistence/postgres"
	"github.com/campusnote/termcycle/internal/infrastructure/scheduler/jobs"
	"github.com/campusnote/termcycle/pkg/logger"
	"github.com/campusnote/termcycle/pkg/timeutil"
)

const usage = `usage: termctl [-config file] <command> [flags]

commands:
  migrate                               apply database migrations
  provision -owner ID [-from Y -to Y]   create an owner's terms (default: registration window)
  list      -owner ID                   list an owner's terms
  current   -owner ID [-date D]         resolve the active term
  outline   -owner ID -term ID [-weeks N]
                                        week-by-week date ranges of a term
  week      -owner ID -term ID -date D  week number of a date within a term
  rollover  [-date D]                   run the yearly rollover once
  backfill                              re-stamp fallback start dates
  calendar  [-source PATH]              show term-start dates found in the feed
`

// env holds what the subcommands share.
type env struct {
	cfg   *config.Config
	log   *logger.Logger
	out   io.Writer
	conn  *postgres.Connection
	store *postgres.Store
}

func main() {
	fs := flag.NewFlagSet("termctl", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, fs.Arg(0), fs.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "termctl: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// Exit codes beyond the generic failure, for scripts that call termctl.
const (
	exitFailure   = 1
	exitUsage     = 2
	exitNotFound  = 3
	exitTransient = 75
)

// exitCode classifies err the way the worker's endpoints do.
func exitCode(err error) int {
	switch {
	case shared.IsValidation(err):
		return exitUsage
	case shared.IsNotFound(err):
		return exitNotFound
	case shared.IsRetryable(err):
		return exitTransient
	default:
		return exitFailure
	}
}

func run(ctx context.Context, configPath, cmd string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	e := &env{
		cfg: cfg,
		log: logger.New(logger.Options{Output: os.Stderr, Level: logger.ParseLevel(cfg.Log.Level), Format: "console"}),
		out: os.Stdout,
	}
	defer e.log.Sync()

	// calendar works without a database.
	if cmd == "calendar" {
		return e.showCalendar(ctx, args)
	}

	if err := e.connect(ctx); err != nil {
		return err
	}
	defer e.conn.Close()

	switch cmd {
	case "migrate":
		status, err := e.conn.Migrate(e.log)
		if err != nil {
			return err
		}
		return e.print(status)
	case "provision":
		return e.provision(ctx, args)
	case "list":
		return e.list(ctx, args)
	case "current":
		return e.current(ctx, args)
	case "outline":
		return e.outline(ctx, args)
	case "week":
		return e.week(ctx, args)
	case "rollover":
		return e.rollover(ctx, args)
	case "backfill":
		return e.backfill(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q\n%s", shared.ErrInvalidInput, cmd, usage)
	}
}

func (e *env) connect(ctx context.Context) error {
	if e.cfg.Database.URL == "" {
		return errors.New("database.url is required (TERMCYCLE_DATABASE_URL)")
	}
	conn, err := postgres.NewConnection(ctx, postgres.DefaultConfig(e.cfg.Database.URL))
	if err != nil {
		return err
	}
	e.conn = conn
	e.store = postgres.NewStore(conn)
	return nil
}

func (e *env) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func (e *env) clock() timeutil.Clock {
	return timeutil.SystemClock{Location: e.cfg.App.Location}
}

// parseDay reads YYYY-MM-DD as noon in the campus timezone.
func (e *env) parseDay(value string) (time.Time, error) {
	d, err := timeutil.ParseDate(value)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, e.cfg.App.Location), nil
}

// provisioner builds the command handler over the configured calendar.
func (e *env) provisioner(ctx context.Context) (*command.ProvisionTermsHandler, error) {
	resolver, err := e.startResolver(ctx)
	if err != nil {
		return nil, err
	}
	return command.NewProvisionTermsHandler(e.store, resolver, command.ProvisionTermsHandlerConfig{
		FirstYear:  e.cfg.Provision.FirstYear,
		YearsAhead: e.cfg.Provision.YearsAhead,
		Clock:      e.clock(),
	}, e.log), nil
}

// startResolver loads calendar.source when set. A feed that cannot be read
// only warns; start dates then come from the static table. A source that
// cannot be opened at all (bad format) is a configuration error.
func (e *env) startResolver(ctx context.Context) (*term.StartResolver, error) {
	if e.cfg.Calendar.Source == "" {
		return term.NewStartResolver(nil), nil
	}
	holder, err := e.openCalendar(e.cfg.Calendar.Source)
	if err != nil {
		return nil, err
	}
	if _, err := holder.Reload(ctx); err != nil {
		e.log.Warn("calendar feed unavailable, using fallback start dates",
			"source", e.cfg.Calendar.Source,
			logger.KeyError, err,
		)
	}
	return term.NewStartResolver(holder), nil
}

func (e *env) openCalendar(location string) (*calendar.Holder, error) {
	src, err := calendarfeed.Open(calendarfeed.Config{
		Location: location,
		Format:   calendarfeed.Format(e.cfg.Calendar.Format),
		Sheet:    e.cfg.Calendar.Sheet,
		Timeout:  e.cfg.Calendar.FetchTimeout,
		Timezone: e.cfg.App.Location,
		Logger:   e.log,
	})
	if err != nil {
		return nil, err
	}
	return calendar.NewHolder(src, e.cfg.Calendar.StartMarker, e.log), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBCOMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func (e *env) provision(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner id")
	from := fs.Int("from", 0, "first year")
	to := fs.Int("to", 0, "last year")
	if err := fs.Parse(args); err != nil {
		return err
	}

	h, err := e.provisioner(ctx)
	if err != nil {
		return err
	}
	if err := e.store.EnsureOwner(ctx, *owner); err != nil {
		return err
	}

	var res *command.EnsureWindowResult
	if *from == 0 && *to == 0 {
		res, err = h.ProvisionForNewOwner(ctx, *owner)
	} else {
		res, err = h.Handle(ctx, command.EnsureWindowCommand{OwnerID: *owner, FromYear: *from, ToYear: *to})
	}
	if err != nil {
		return err
	}
	return e.print(map[string]any{"owner_id": res.OwnerID, "created": res.Created, "existing": res.Existing})
}

func (e *env) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	terms, err := e.store.ListByOwner(ctx, *owner)
	if err != nil {
		return err
	}
	out := make([]query.TermDTO, 0, len(terms))
	for _, t := range terms {
		out = append(out, query.NewTermDTO(t))
	}
	return e.print(out)
}

func (e *env) current(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("current", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner id")
	date := fs.String("date", "", "YYYY-MM-DD (default: today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := query.GetCurrentTermQuery{OwnerID: *owner}
	if *date != "" {
		day, err := e.parseDay(*date)
		if err != nil {
			return err
		}
		q.Today = day
	}

	h := query.NewGetCurrentTermHandler(e.store, term.NewCurrentResolver(e.cfg.Terms.ContainmentWeeks), e.clock(), e.cfg.App.Location)
	res, err := h.Handle(ctx, q)
	if err != nil {
		return err
	}
	return e.print(res)
}

func (e *env) outline(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("outline", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner id")
	termID := fs.String("term", "", "term id")
	weeks := fs.Int("weeks", 0, "number of weeks (default: terms.outline_weeks)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	h := query.NewGetWeekWindowHandler(e.store, e.cfg.Terms.OutlineWeeks)
	res, err := h.Outline(ctx, query.TermRef{OwnerID: *owner, TermID: *termID}, *weeks)
	if err != nil {
		return err
	}
	return e.print(res)
}

func (e *env) week(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("week", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner id")
	termID := fs.String("term", "", "term id")
	date := fs.String("date", "", "YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	day, err := timeutil.ParseDate(*date)
	if err != nil {
		return err
	}

	ref := query.TermRef{OwnerID: *owner, TermID: *termID}
	h := query.NewGetWeekWindowHandler(e.store, e.cfg.Terms.OutlineWeeks)
	n, err := h.WeekOf(ctx, ref, day)
	if err != nil {
		return err
	}
	if n == 0 {
		return e.print(map[string]any{"date": *date, "week": 0})
	}
	res, err := h.WeekRange(ctx, ref, n)
	if err != nil {
		return err
	}
	return e.print(res)
}

func (e *env) rollover(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rollover", flag.ContinueOnError)
	date := fs.String("date", "", "run as of YYYY-MM-DD (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	now := e.clock().Now()
	if *date != "" {
		day, err := e.parseDay(*date)
		if err != nil {
			return err
		}
		now = day
	}

	h, err := e.provisioner(ctx)
	if err != nil {
		return err
	}
	job := jobs.NewTermRolloverJob(e.store, e.store, h, jobs.TermRolloverConfig{
		Concurrency: e.cfg.Rollover.Concurrency,
		Clock:       e.clock(),
	}, e.log)

	stats, err := job.RunAt(ctx, now)
	if stats != nil {
		if perr := e.print(stats); perr != nil {
			return perr
		}
	}
	return err
}

func (e *env) backfill(ctx context.Context) error {
	h, err := e.provisioner(ctx)
	if err != nil {
		return err
	}
	stats, err := jobs.NewTermBackfillJob(e.store, h, e.cfg.Rollover.Concurrency, e.log).RunOnce(ctx)
	if stats != nil {
		if perr := e.print(stats); perr != nil {
			return perr
		}
	}
	return err
}

func (e *env) showCalendar(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("calendar", flag.ContinueOnError)
	source := fs.String("source", e.cfg.Calendar.Source, "calendar file or URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *source == "" {
		return fmt.Errorf("%w: no calendar source, set calendar.source or pass -source", shared.ErrInvalidInput)
	}

	holder, err := e.openCalendar(*source)
	if err != nil {
		return err
	}
	snap, err := holder.Reload(ctx)
	if err != nil {
		return err
	}
	dates := make(map[string]string, snap.Len())
	for _, key := range snap.Keys() {
		d, _ := snap.Lookup(key)
		dates[key] = timeutil.FormatDateStr(d)
	}
	return e.print(dates)
}
