package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnote/termcycle/config"
	"github.com/campusnote/termcycle/internal/domain/shared"
	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/internal/infrastructure/external/calendarfeed"
	"github.com/campusnote/termcycle/internal/infrastructure/scheduler"
	"github.com/campusnote/termcycle/pkg/logger"
)

func newTestEnv(t *testing.T, source string) (*env, *bytes.Buffer) {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Calendar.Source = source

	out := &bytes.Buffer{}
	return &env{cfg: cfg, log: logger.Nop(), out: out}, out
}

func TestStartResolver_UnreachableFeedFallsBack(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.csv")
	e, _ := newTestEnv(t, missing)

	resolver, err := e.startResolver(context.Background())
	require.NoError(t, err)

	got, source := resolver.ResolveWithSource(2025, term.SeasonSpring)
	assert.Equal(t, term.StartSourceFallback, source)
	assert.Equal(t, term.SeasonSpring.FallbackDate(2025), got)

	// The calendar subcommand exists to show the feed, so there it fails.
	err = e.showCalendar(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
}

func TestStartResolver_ReadsFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.csv")
	require.NoError(t, os.WriteFile(path, []byte("2025,3,4,개강\n"), 0o600))
	e, out := newTestEnv(t, path)

	resolver, err := e.startResolver(context.Background())
	require.NoError(t, err)
	got, source := resolver.ResolveWithSource(2025, term.SeasonSpring)
	assert.Equal(t, term.StartSourceCalendar, source)
	assert.Equal(t, 4, got.Day())

	require.NoError(t, e.showCalendar(context.Background(), nil))
	assert.Contains(t, out.String(), `"2025-03": "2025-03-04"`)
}

func TestStartResolver_BadFormatIsFatal(t *testing.T) {
	e, _ := newTestEnv(t, filepath.Join(t.TempDir(), "calendar.csv"))
	e.cfg.Calendar.Format = "pdf"

	_, err := e.startResolver(context.Background())
	assert.ErrorIs(t, err, calendarfeed.ErrUnsupportedFormat)
}

func TestStartResolver_NoSource(t *testing.T) {
	e, _ := newTestEnv(t, "")

	resolver, err := e.startResolver(context.Background())
	require.NoError(t, err)
	_, source := resolver.ResolveWithSource(2025, term.SeasonFall)
	assert.Equal(t, term.StartSourceFallback, source)

	err = e.showCalendar(context.Background(), nil)
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("%w: owner_id is required", shared.ErrInvalidInput), exitUsage},
		{"term not found", fmt.Errorf("get term: %w", term.ErrTermNotFound), exitNotFound},
		{"job not found", scheduler.ErrJobNotFound, exitNotFound},
		{"feed down", shared.WrapError("calendar", "Reload", shared.ErrServiceUnavailable, "read calendar source", errors.New("timeout")), exitTransient},
		{"other", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
