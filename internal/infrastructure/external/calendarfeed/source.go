// Package calendarfeed reads the institutional academic calendar from a
// local file or an http(s) URL. CSV, XLSX and iCalendar feeds are supported;
// every format is reduced to calendar.Row values for ingestion.
package calendarfeed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/campusnote/termcycle/internal/domain/calendar"
	"github.com/campusnote/termcycle/pkg/circuitbreaker"
	"github.com/campusnote/termcycle/pkg/logger"
	"github.com/campusnote/termcycle/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Format identifies the feed encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatICS  Format = "ics"
)

// maxFeedSize caps how much of a feed is read.
const maxFeedSize = 10 << 20

var (
	// ErrUnsupportedFormat is returned when the format cannot be determined.
	ErrUnsupportedFormat = errors.New("calendarfeed: unsupported format")

	// ErrNoLocation is returned by Open when no feed is configured.
	ErrNoLocation = errors.New("calendarfeed: no feed location")
)

// Config describes where the feed lives.
type Config struct {
	// Location is a file path or an http(s):// / webcal:// URL.
	Location string

	// Format overrides detection by extension.
	Format Format

	// Sheet selects the workbook sheet for XLSX feeds.
	Sheet string

	// Timeout bounds one HTTP download. Default: 30s.
	Timeout time.Duration

	// HTTPClient is used for remote feeds. Default: a client with Timeout.
	HTTPClient *http.Client

	// Timezone is the campus timezone for timestamped ICS events.
	Timezone *time.Location

	// Logger for structured logging.
	Logger *logger.Logger
}

// Source reads calendar rows on every call to Rows.
// It implements calendar.Source.
type Source struct {
	location string
	format   Format
	sheet    string
	loc      *time.Location
	client   *http.Client
	retrier  *retry.Retrier
	breaker  *circuitbreaker.CircuitBreaker
	log      *logger.Logger
}

var _ calendar.Source = (*Source)(nil)

// Open validates cfg and returns a Source. Nothing is read until Rows.
func Open(cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.Location) == "" {
		return nil, ErrNoLocation
	}

	format := cfg.Format
	if format == "" {
		format = DetectFormat(cfg.Location)
	}
	format = Format(strings.ToLower(string(format)))
	switch format {
	case FormatCSV, FormatXLSX, FormatICS:
	default:
		return nil, fmt.Errorf("%w: %q for %s", ErrUnsupportedFormat, format, cfg.Location)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	log := logger.OrNop(cfg.Logger).With("component", "calendarfeed", "format", string(format))

	return &Source{
		location: cfg.Location,
		format:   format,
		sheet:    cfg.Sheet,
		loc:      cfg.Timezone,
		client:   client,
		retrier:  retry.CalendarFeedRetrier(),
		breaker: circuitbreaker.CalendarFeedBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("calendar feed breaker state changed", "from", from.String(), "to", to.String())
		}),
		log: log,
	}, nil
}

// Format returns the feed format in use.
func (s *Source) Format() Format {
	return s.format
}

// Rows reads and decodes the whole feed.
func (s *Source) Rows(ctx context.Context) ([]calendar.Row, error) {
	data, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := Decode(bytes.NewReader(data), s.format, DecodeOptions{Sheet: s.sheet, Location: s.loc})
	if err != nil {
		return nil, fmt.Errorf("decode %s feed: %w", s.format, err)
	}
	s.log.Info("calendar feed read", "rows", len(rows), "bytes", len(data))
	return rows, nil
}

// DecodeOptions carries format-specific settings.
type DecodeOptions struct {
	Sheet    string
	Location *time.Location
}

// Decode parses a feed of the given format.
func Decode(r io.Reader, format Format, opts DecodeOptions) ([]calendar.Row, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(r)
	case FormatXLSX:
		return ParseXLSX(r, opts.Sheet)
	case FormatICS:
		return ParseICS(r, opts.Location)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// DetectFormat guesses the format from the file extension.
// Unknown extensions are treated as CSV.
func DetectFormat(location string) Format {
	p := location
	if isRemote(location) {
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
		p = path.Ext(p)
	} else {
		p = filepath.Ext(p)
	}

	switch strings.ToLower(p) {
	case ".xlsx":
		return FormatXLSX
	case ".ics", ".ical", ".ifb":
		return FormatICS
	default:
		return FormatCSV
	}
}

func isRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "webcal://")
}

// ══════════════════════════════════════════════════════════════════════════════
// READING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Source) read(ctx context.Context) ([]byte, error) {
	if !isRemote(s.location) {
		f, err := os.Open(s.location)
		if err != nil {
			return nil, fmt.Errorf("open calendar feed: %w", err)
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxFeedSize))
	}

	var data []byte
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = retry.DoWithData(ctx, s.retrier, s.fetch)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch calendar feed: %w", err)
	}
	return data, nil
}

func (s *Source) fetch(ctx context.Context) ([]byte, error) {
	u := s.location
	if strings.HasPrefix(strings.ToLower(u), "webcal://") {
		u = "https://" + u[len("webcal://"):]
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, retry.Retryable(fmt.Errorf("calendar feed: status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Permanent(fmt.Errorf("calendar feed: status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("read response: %w", err))
	}
	return data, nil
}
