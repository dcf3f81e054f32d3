package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, "Asia/Seoul", cfg.App.Location.String())
	assert.Equal(t, 16, cfg.Terms.ContainmentWeeks)
	assert.Equal(t, "개강", cfg.Calendar.StartMarker)
	assert.Equal(t, 2020, cfg.Provision.FirstYear)
	assert.Equal(t, 1, cfg.Provision.YearsAhead)
	assert.Equal(t, "0 3 1 12 *", cfg.Scheduler.RolloverCron)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.BackfillInterval)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.CalendarReloadInterval)
	assert.Equal(t, 4, cfg.Rollover.Concurrency)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "termcycle.yaml")
	body := `
terms:
  containment_weeks: 15
calendar:
  source: ./calendar.csv
  start_marker: "학기 개시"
scheduler:
  rollover_cron: "0 4 2 12 *"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("TERMCYCLE_ROLLOVER_CONCURRENCY", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Terms.ContainmentWeeks)
	assert.Equal(t, "./calendar.csv", cfg.Calendar.Source)
	assert.Equal(t, "학기 개시", cfg.Calendar.StartMarker)
	assert.Equal(t, "0 4 2 12 *", cfg.Scheduler.RolloverCron)
	assert.Equal(t, 8, cfg.Rollover.Concurrency)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate_RejectsInvalidCron(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TERMCYCLE_SCHEDULER_ROLLOVER_CRON", "every december")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.rollover_cron")
}

func TestValidate_Ranges(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Terms.ContainmentWeeks = 0
	cfg.Calendar.Format = "pdf"
	cfg.Rollover.Concurrency = 0

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terms.containment_weeks")
	assert.Contains(t, err.Error(), "calendar.format")
	assert.Contains(t, err.Error(), "rollover.concurrency")
}

func TestValidate_ProductionNeedsDatabase(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TERMCYCLE_APP_ENV", "production")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}
