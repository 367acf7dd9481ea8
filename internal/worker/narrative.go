package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"brawlmeta/internal/analyst"
	"brawlmeta/internal/domain"
	"brawlmeta/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	narrativeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brawlmeta_narrative_queue_depth",
		Help: "Number of narrative jobs waiting to be processed.",
	})
	narrativeJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brawlmeta_narrative_jobs_total",
		Help: "Narrative jobs by outcome.",
	}, []string{"outcome"})
)

// Job asks for a narrative to be attached to a stored aggregate.
type Job struct {
	AggregateID int64
	Payload     domain.AggregatePayload
}

// NarrativeWorker processes narrative jobs on a single goroutine so that a
// slow or failing language model never blocks the aggregation cycle.
type NarrativeWorker struct {
	analyst    *analyst.Analyst
	aggregates *repository.AggregateRepository
	logger     zerolog.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan Job
	wg     sync.WaitGroup
}

func NewNarrativeWorker(a *analyst.Analyst, aggregates *repository.AggregateRepository, logger zerolog.Logger) *NarrativeWorker {
	return &NarrativeWorker{
		analyst:    a,
		aggregates: aggregates,
		logger:     logger,
		jobs:       make(chan Job, 16),
	}
}

// Start launches the worker loop. It exits when Stop is called or ctx ends.
func (w *NarrativeWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case job, ok := <-w.jobs:
				if !ok {
					return
				}
				narrativeQueueDepth.Set(float64(len(w.jobs)))
				w.process(ctx, job)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop closes the queue and waits for in-flight work to finish. Safe to call
// more than once.
func (w *NarrativeWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Enqueue hands a job to the worker. A full queue or a stopped worker drops
// the job rather than stalling the caller; aggregation cycles that outlive
// shutdown must not reach a closed queue.
func (w *NarrativeWorker) Enqueue(job Job) bool {
	if !w.analyst.Enabled() {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		narrativeJobsTotal.WithLabelValues("dropped").Inc()
		w.logger.Warn().Int64("aggregate_id", job.AggregateID).Msg("narrative worker stopped, dropping job")
		return false
	}
	select {
	case w.jobs <- job:
		narrativeQueueDepth.Set(float64(len(w.jobs)))
		return true
	default:
		narrativeJobsTotal.WithLabelValues("dropped").Inc()
		w.logger.Warn().Int64("aggregate_id", job.AggregateID).Msg("narrative queue full, dropping job")
		return false
	}
}

func (w *NarrativeWorker) process(ctx context.Context, job Job) {
	start := time.Now()

	narrative, err := w.analyst.AnalyzeGlobalMeta(ctx, job.Payload)
	if err != nil {
		if !errors.Is(err, analyst.ErrDisabled) {
			w.logger.Error().Err(err).Int64("aggregate_id", job.AggregateID).Msg("narrative generation failed")
		}
		narrativeJobsTotal.WithLabelValues("failed").Inc()
		return
	}

	if err := w.aggregates.SetNarrative(ctx, job.AggregateID, narrative, time.Now().UTC()); err != nil {
		w.logger.Error().Err(err).Int64("aggregate_id", job.AggregateID).Msg("failed to store narrative")
		narrativeJobsTotal.WithLabelValues("failed").Inc()
		return
	}

	narrativeJobsTotal.WithLabelValues("completed").Inc()
	w.logger.Info().
		Int64("aggregate_id", job.AggregateID).
		Dur("duration", time.Since(start)).
		Msg("narrative attached to aggregate")
}
