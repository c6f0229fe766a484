package sched

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"provincecast/internal/collect"
	"provincecast/internal/metrics"
	"provincecast/internal/models"
	"provincecast/internal/verify"
)

const (
	dailyCollectionSpec = "0 6 * * *"
	nightlyVerifySpec   = "0 23 * * *"
	collectionHour      = 6
)

// Scheduler drives the daily collection and nightly verification jobs and owns
// the process-wide run status record.
type Scheduler struct {
	collector *collect.Collector
	verifier  *verify.Verifier
	cron      *cron.Cron
	clock     clockwork.Clock

	// runMu serializes collection runs so a manual trigger cannot overlap a
	// concurrently-running scheduled run.
	runMu sync.Mutex

	mu      sync.Mutex
	status  models.RunStatus
	enabled bool
}

func New(collector *collect.Collector, verifier *verify.Verifier) *Scheduler {
	return &Scheduler{
		collector: collector,
		verifier:  verifier,
		cron:      cron.New(),
		clock:     clockwork.NewRealClock(),
		status:    models.RunStatus{Status: "not yet run"},
	}
}

// SetClock swaps the time source, used by tests.
func (s *Scheduler) SetClock(clock clockwork.Clock) {
	s.clock = clock
}

// Start registers the cron entries and starts the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(dailyCollectionSpec, s.RunDailyCollection); err != nil {
		return fmt.Errorf("schedule daily collection: %w", err)
	}
	if _, err := s.cron.AddFunc(nightlyVerifySpec, s.RunNightlyVerification); err != nil {
		return fmt.Errorf("schedule nightly verification: %w", err)
	}

	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()

	s.cron.Start()
	log.Println("scheduler: started (collection 06:00, verification 23:00)")
	return nil
}

// Stop halts the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}

	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
	log.Println("scheduler: stopped")
}

// RunDailyCollection runs the today-mode batch over all provinces and records
// the outcome. It never panics or propagates errors out of the cron entry
// point: a failure becomes the stored status message.
func (s *Scheduler) RunDailyCollection() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	log.Println("scheduler: starting daily collection")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	summary := s.collector.CollectAllToday(ctx)

	status := "success"
	if summary.Failed > 0 {
		status = fmt.Sprintf("completed with %d failures", summary.Failed)
	}
	s.setStatus(status, summary.Succeeded)
	metrics.LastCollectionTimestamp.SetToCurrentTime()

	log.Printf("scheduler: daily collection done: %d succeeded, %d failed", summary.Succeeded, summary.Failed)
}

// RunNightlyVerification grades due predictions against realized observations.
func (s *Scheduler) RunNightlyVerification() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	log.Println("scheduler: starting nightly verification")
	attempted, verified := s.verifier.VerifyDue()
	log.Printf("scheduler: nightly verification done: %d/%d", verified, attempted)
}

// TriggerManual runs the daily collection synchronously and returns the
// resulting status string. The shared run mutex means it waits for any
// in-flight scheduled run instead of overlapping it.
func (s *Scheduler) TriggerManual() string {
	s.RunDailyCollection()
	return s.Status().Status
}

// Status returns a copy of the current run status record.
func (s *Scheduler) Status() models.RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.status
	status.Enabled = s.enabled
	status.NextRun = s.nextRunAfter(s.clock.Now())
	return status
}

func (s *Scheduler) setStatus(message string, records int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastRun = s.clock.Now()
	s.status.Status = message
	s.status.RecordCount = records
}

// nextRunAfter returns the next fixed daily collection time: today's slot if
// still ahead, otherwise the same time tomorrow.
func (s *Scheduler) nextRunAfter(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), collectionHour, 0, 0, 0, now.Location())
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
