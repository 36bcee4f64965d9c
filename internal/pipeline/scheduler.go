package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/pawtrawl/pawtrawl/internal/retention"
)

// SchedulerConfig controls the background jobs.
type SchedulerConfig struct {
	// DueCheckInterval is how often the due list is reported.
	DueCheckInterval time.Duration `mapstructure:"due_check_interval" yaml:"due_check_interval"`
	// CleanupInterval is how often expired crawls are swept.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// DefaultSchedulerConfig returns the standard scheduler settings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		DueCheckInterval: time.Hour,
		CleanupInterval:  24 * time.Hour,
	}
}

// Scheduler runs the periodic due-list check and expiry sweep.
type Scheduler struct {
	scheduler gocron.Scheduler
	ledger    *retention.Ledger
	logger    *slog.Logger
}

// NewScheduler creates the background scheduler. Jobs start running
// only after Start is called.
func NewScheduler(cfg SchedulerConfig, ledger *retention.Ledger, logger *slog.Logger) (*Scheduler, error) {
	if cfg.DueCheckInterval <= 0 {
		cfg.DueCheckInterval = time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{scheduler: scheduler, ledger: ledger, logger: logger}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(cfg.DueCheckInterval),
		gocron.NewTask(s.reportDue),
	); err != nil {
		return nil, fmt.Errorf("failed to create due-check job: %w", err)
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(cfg.CleanupInterval),
		gocron.NewTask(s.sweepExpired),
	); err != nil {
		return nil, fmt.Errorf("failed to create cleanup job: %w", err)
	}

	return s, nil
}

// Start begins running the background jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) reportDue() {
	due, err := s.ledger.DueForCrawl()
	if err != nil {
		s.logger.Error("Due-list check failed", "error", err)
		return
	}
	if len(due) == 0 {
		s.logger.Debug("No businesses due for recrawl")
		return
	}
	s.logger.Info("Businesses due for recrawl", "count", len(due))
	for _, b := range due {
		s.logger.Info("Due for recrawl",
			"business_id", b.BusinessID, "business_type", b.BusinessType, "due", b.NextCrawlDue)
	}
}

func (s *Scheduler) sweepExpired() {
	summary, err := s.ledger.ExpireOldCrawls()
	if err != nil {
		s.logger.Error("Expiry sweep failed", "error", err)
		return
	}
	if summary.CrawlsDeleted == 0 {
		s.logger.Debug("Expiry sweep found nothing to delete")
		return
	}
	s.logger.Info("Expired crawls removed",
		"crawls_deleted", summary.CrawlsDeleted,
		"files_deleted", summary.FilesDeleted,
		"bytes_freed", summary.BytesFreed)
}
