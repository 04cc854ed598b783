package server

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/merlin-labs/merlin/detect"
)

// DefaultRescanSchedule runs a detector sweep every five minutes.
const DefaultRescanSchedule = "*/5 * * * *"

var rescanCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// Rescanner periodically re-runs the detector so served status stays fresh
// without scanning on every request.
type Rescanner struct {
	detector *detect.Detector
	logger   *slog.Logger
	cron     *cron.Cron

	mu        sync.RWMutex
	results   []detect.Result
	scannedAt time.Time
}

// NewRescanner creates a rescanner on the given cron schedule. An empty
// schedule uses the default.
func NewRescanner(detector *detect.Detector, schedule string, logger *slog.Logger) (*Rescanner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	expr := strings.TrimSpace(schedule)
	if expr == "" {
		expr = DefaultRescanSchedule
	}
	if _, err := rescanCronParser.Parse(expr); err != nil {
		return nil, fmt.Errorf("invalid rescan schedule %q: %w", expr, err)
	}

	r := &Rescanner{
		detector: detector,
		logger:   logger,
		cron:     cron.New(cron.WithParser(rescanCronParser)),
	}
	if _, err := r.cron.AddFunc(expr, r.scan); err != nil {
		return nil, fmt.Errorf("scheduling rescan: %w", err)
	}
	return r, nil
}

// Start performs an immediate scan and begins the schedule.
func (r *Rescanner) Start() {
	r.scan()
	r.cron.Start()
}

// Stop halts the schedule. Running scans finish.
func (r *Rescanner) Stop() {
	r.cron.Stop()
}

// Latest returns the most recent scan results and when they were taken.
func (r *Rescanner) Latest() ([]detect.Result, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.results, r.scannedAt
}

func (r *Rescanner) scan() {
	start := time.Now()
	results := r.detector.Scan()

	r.mu.Lock()
	r.results = results
	r.scannedAt = start
	r.mu.Unlock()

	present := 0
	for _, res := range results {
		if res.State != detect.StateAbsent {
			present++
		}
	}
	r.logger.Debug("detector rescan",
		"tools", len(results),
		"present", present,
		"duration", time.Since(start))
}
