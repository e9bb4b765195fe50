// Package scheduler runs automatic scans for products that have
// auto-run enabled. Scans are placed at evenly spaced hours inside the
// product's daily window, or at a cron expression when one is set.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/brandlens/brandlens/internal/db"
)

// Starter starts a scan for a product. Implemented by the monitor.
type Starter interface {
	StartScan(ctx context.Context, productID string) error
}

// Scheduler manages automatic scans
type Scheduler struct {
	db      *db.DB
	starter Starter
	parser  cron.Parser
	now     func() time.Time

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// Next fire time per product with a cron override.
	cronNext map[string]time.Time
}

// New creates a new scheduler
func New(database *db.DB, starter Starter) *Scheduler {
	return &Scheduler{
		db:       database,
		starter:  starter,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		now:      time.Now,
		cronNext: make(map[string]time.Time),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop stops the scheduler and waits for in-flight starts to complete
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)

	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	// Check immediately on start
	s.checkProducts(ctx)

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.checkProducts(ctx)
		}
	}
}

// checkProducts walks all auto-run products and starts the ones due
func (s *Scheduler) checkProducts(ctx context.Context) {
	configs, err := s.db.ListProductConfigs()
	if err != nil {
		log.Printf("scheduler: failed to load configs: %v", err)
		return
	}

	now := s.now()
	for _, cfg := range configs {
		if !cfg.AutoRunEnabled {
			continue
		}
		if s.rolloverDay(cfg, now) {
			if err := s.db.UpsertProductConfig(cfg); err != nil {
				log.Printf("scheduler: persist day rollover for %s: %v", cfg.ProductID, err)
				continue
			}
		}
		if !s.due(cfg, now) {
			continue
		}

		// Count the attempt before the scan runs. A failed start still
		// consumes the slot, otherwise a persistent failure would retry
		// every minute for the rest of the window.
		cfg.ScansToday++
		if err := s.db.UpsertProductConfig(cfg); err != nil {
			log.Printf("scheduler: persist scan count for %s: %v", cfg.ProductID, err)
			continue
		}

		s.wg.Add(1)
		go func(productID string) {
			defer s.wg.Done()
			log.Printf("scheduler: starting auto-scan for %s", productID)
			if err := s.starter.StartScan(ctx, productID); err != nil {
				log.Printf("scheduler: auto-scan for %s failed: %v", productID, err)
			}
		}(cfg.ProductID)
	}
}

// rolloverDay resets the daily counters when the date changes. Returns
// whether the config was modified and needs persisting.
func (s *Scheduler) rolloverDay(cfg *db.ProductConfig, now time.Time) bool {
	today := now.Format("2006-01-02")
	if cfg.LastAutoScanDate != nil && *cfg.LastAutoScanDate == today {
		return false
	}
	cfg.LastAutoScanDate = &today
	cfg.ScansToday = 0
	cfg.ScheduledTimes = scheduleHours(cfg.WindowStart, cfg.WindowEnd, cfg.ScansPerDay)
	return true
}

// due reports whether the product's next scan slot has been reached.
func (s *Scheduler) due(cfg *db.ProductConfig, now time.Time) bool {
	if cfg.ScansToday >= cfg.ScansPerDay {
		return false
	}

	if cfg.CronExpression != nil && *cfg.CronExpression != "" {
		return s.cronDue(cfg.ProductID, *cfg.CronExpression, now)
	}

	if cfg.ScansToday >= len(cfg.ScheduledTimes) {
		return false
	}
	hour := now.Hour()
	return hour >= cfg.ScheduledTimes[cfg.ScansToday] && hour < cfg.WindowEnd
}

// cronDue tracks the next cron occurrence per product. The first check
// only arms the schedule; firing at startup for an expression that
// matched in the past would surprise the user.
func (s *Scheduler) cronDue(productID, expr string, now time.Time) bool {
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		log.Printf("scheduler: invalid cron expression for %s: %v", productID, err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.cronNext[productID]
	if !ok {
		s.cronNext[productID] = schedule.Next(now)
		return false
	}
	if now.Before(next) {
		return false
	}
	s.cronNext[productID] = schedule.Next(now)
	return true
}

// scheduleHours distributes n scan slots evenly across the [start, end)
// window. A degenerate window collapses to the start hour.
func scheduleHours(start, end, n int) []int {
	if n <= 0 {
		return nil
	}
	span := end - start
	if span <= 0 {
		span = 1
	}
	hours := make([]int, n)
	for i := 0; i < n; i++ {
		hours[i] = start + i*span/n
	}
	return hours
}
