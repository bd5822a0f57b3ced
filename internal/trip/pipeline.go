package trip

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jahua/data-warehouse/internal/db"
	"github.com/jahua/data-warehouse/internal/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Stage names one step of a warehouse run, as reported on failure.
type Stage string

const (
	StageWindow    Stage = "window"
	StageExtract   Stage = "extract"
	StageSegment   Stage = "segment"
	StageAggregate Stage = "aggregate"
	StageValidate  Stage = "validate"
	StageMerge     Stage = "merge"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RunResult is the structured outcome of one batch run, returned to the
// trigger caller and published for observers.
type RunResult struct {
	RunID        string    `json:"run_id"`
	Status       string    `json:"status"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	PingCount    int       `json:"ping_count"`
	Vehicles     int       `json:"vehicles"`
	Malformed    int       `json:"malformed_pings"`
	Candidates   int       `json:"candidates"`
	Rejected     int       `json:"rejected"`
	TripsWritten int       `json:"trips_written"`
	FailedStage  Stage     `json:"failed_stage,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// RunnerOptions bound a batch run. Zero values fall back to the production
// defaults.
type RunnerOptions struct {
	WindowLength   time.Duration
	Timezone       string
	QueryTimeout   time.Duration
	MergeBatchSize int
	Thresholds     Thresholds
}

// Runner drives one extract-segment-validate-merge batch at a time.
type Runner struct {
	reader    *Reader
	writer    *MergeWriter
	segmenter *Segmenter
	publisher *events.Publisher
	opts      RunnerOptions
	nowFn     func() time.Time
}

func NewRunner(source db.Querier, warehouse db.TxQuerier, publisher *events.Publisher, opts RunnerOptions) *Runner {
	if opts.WindowLength <= 0 {
		opts.WindowLength = 24 * time.Hour
	}
	if opts.Timezone == "" {
		opts.Timezone = "Europe/Zurich"
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Minute
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}

	return &Runner{
		reader:    NewReader(source),
		writer:    NewMergeWriter(warehouse, opts.MergeBatchSize),
		segmenter: NewSegmenter(opts.Thresholds),
		publisher: publisher,
		opts:      opts,
		nowFn:     time.Now,
	}
}

// Window returns the trailing extraction range [start, end) anchored to the
// configured zone.
func (r *Runner) Window() (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(r.opts.Timezone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("load timezone %q: %w", r.opts.Timezone, err)
	}
	end := r.nowFn().In(loc)
	return end.Add(-r.opts.WindowLength), end, nil
}

// Run executes one batch and always returns a result; failures are carried
// in the result rather than panicking across the trigger boundary.
func (r *Runner) Run(ctx context.Context) RunResult {
	result := RunResult{
		RunID:     uuid.NewString(),
		Status:    StatusSuccess,
		StartedAt: r.nowFn(),
	}
	logger := log.WithField("run_id", result.RunID)

	err := r.execute(ctx, logger, &result)
	result.FinishedAt = r.nowFn()
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		logger.WithField("stage", result.FailedStage).WithError(err).Error("warehouse run failed")
	} else {
		logger.WithFields(log.Fields{
			"pings":         result.PingCount,
			"candidates":    result.Candidates,
			"rejected":      result.Rejected,
			"trips_written": result.TripsWritten,
		}).Info("warehouse run finished")
	}

	if r.publisher != nil {
		if err := r.publisher.PublishRun(context.Background(), result); err != nil {
			logger.WithError(err).Warn("publish run result")
		}
	}
	return result
}

func (r *Runner) execute(ctx context.Context, logger *log.Entry, result *RunResult) error {
	start, end, err := r.Window()
	if err != nil {
		result.FailedStage = StageWindow
		return err
	}
	result.WindowStart, result.WindowEnd = start, end
	logger.WithFields(log.Fields{"window_start": start, "window_end": end}).Info("warehouse run started")

	extractCtx, cancel := context.WithTimeout(ctx, r.opts.QueryTimeout)
	pings, err := r.reader.PingsBetween(extractCtx, start, end)
	cancel()
	if err != nil {
		result.FailedStage = StageExtract
		return fmt.Errorf("extract: %w", err)
	}
	result.PingCount = len(pings)
	if len(pings) == 0 {
		logger.Info("no pings in window")
		return nil
	}

	candidates, stats := r.segmenter.Candidates(pings)
	result.Vehicles = stats.Vehicles
	result.Malformed = stats.Malformed
	result.Candidates = stats.Candidates
	logger.WithFields(log.Fields{
		"vehicles":   stats.Vehicles,
		"candidates": stats.Candidates,
		"malformed":  stats.Malformed,
	}).Debug("segmentation complete")

	trips := make([]Trip, 0, len(candidates))
	for _, c := range candidates {
		t := Aggregate(c)
		if !r.segmenter.Validate(t) {
			result.Rejected++
			continue
		}
		trips = append(trips, t)
	}
	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].TripStart.Before(trips[j].TripStart)
	})
	if len(trips) == 0 {
		logger.Info("no trips survived validation")
		return nil
	}

	mergeCtx, cancel := context.WithTimeout(ctx, r.opts.QueryTimeout)
	defer cancel()
	if err := r.writer.EnsureSchema(mergeCtx); err != nil {
		result.FailedStage = StageMerge
		return fmt.Errorf("merge: %w", err)
	}
	written, err := r.writer.MergeTrips(mergeCtx, trips)
	if err != nil {
		result.FailedStage = StageMerge
		return fmt.Errorf("merge: %w", err)
	}
	result.TripsWritten = written
	return nil
}
