// Package scheduler removes old uploads and result workbooks on a cron
// schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule runs the cleanup daily at 03:00.
const DefaultSchedule = "0 3 * * *"

// Config configures a Cleaner.
type Config struct {
	Schedule      string
	RetentionDays int
	Dirs          []string
	Location      *time.Location
}

// Cleaner deletes regular files older than the retention period from a set
// of directory trees. Directories themselves are kept.
type Cleaner struct {
	cfg  Config
	log  zerolog.Logger
	cron *cron.Cron
	now  func() time.Time
}

// NewCleaner creates a cleaner. It is disabled when RetentionDays <= 0.
func NewCleaner(cfg Config, log zerolog.Logger) *Cleaner {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Cleaner{cfg: cfg, log: log.With().Str("component", "cleanup").Logger(), now: time.Now}
}

// Enabled reports whether files are ever deleted.
func (c *Cleaner) Enabled() bool {
	return c.cfg.RetentionDays > 0
}

// Start schedules the cleanup. It is a no-op for a disabled cleaner.
func (c *Cleaner) Start() error {
	if !c.Enabled() {
		c.log.Info().Msg("Retention cleanup disabled")
		return nil
	}

	c.cron = cron.New(cron.WithLocation(c.cfg.Location))
	_, err := c.cron.AddFunc(c.cfg.Schedule, func() {
		removed, err := c.Sweep(c.now())
		if err != nil {
			c.log.Error().Err(err).Int("removed", removed).Msg("Retention cleanup failed")
			return
		}
		c.log.Info().Int("removed", removed).Msg("Retention cleanup finished")
	})
	if err != nil {
		return fmt.Errorf("unable to schedule cleanup %q: %w", c.cfg.Schedule, err)
	}

	c.cron.Start()
	c.log.Info().
		Str("schedule", c.cfg.Schedule).
		Int("retention_days", c.cfg.RetentionDays).
		Msg("Retention cleanup scheduled")
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish or ctx to
// be done.
func (c *Cleaner) Stop(ctx context.Context) {
	if c.cron == nil {
		return
	}
	select {
	case <-c.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep deletes the files last modified before now minus the retention
// period and returns how many were removed. Missing directories are skipped.
func (c *Cleaner) Sweep(now time.Time) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -c.cfg.RetentionDays)

	removed := 0
	var errs []error
	for _, dir := range c.cfg.Dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				errs = append(errs, err)
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				return nil
			}
			if err := os.Remove(path); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
				return nil
			}
			c.log.Debug().Str("file", path).Msg("Removed expired file")
			removed++
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("walk %s: %w", dir, err))
		}
	}
	return removed, errors.Join(errs...)
}
