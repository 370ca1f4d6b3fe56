// Package orchestrator implements the single-threaded cooperative pipeline
// loop (§4.J, §5): each tick refreshes AI config, runs scoring and
// windowing, meta-analyzes any newly closed windows, and invokes the
// external alert evaluator for the windows that succeeded. Cadence adapts
// to how much activity a tick found.
package orchestrator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/logpulse/logpulse/pkg/aiconfig"
	"github.com/logpulse/logpulse/pkg/metaanalysis"
	"github.com/logpulse/logpulse/pkg/model"
	"github.com/logpulse/logpulse/pkg/scoring"
	"github.com/logpulse/logpulse/pkg/window"
)

// Store is the persistence surface the orchestrator needs beyond what its
// sub-components already encapsulate.
type Store interface {
	Systems(ctx context.Context) ([]model.MonitoredSystem, error)
	PipelineConfig(ctx context.Context) (model.PipelineConfig, error)
	MetaAnalysisConfig(ctx context.Context, systemID string) (metaanalysis.Config, error)
}

// AlertEvaluator is the external hook invoked for every window whose
// meta-analysis succeeded (§4.J step 6).
type AlertEvaluator interface {
	EvaluateAlerts(ctx context.Context, windowID string) error
}

// Orchestrator runs the pipeline tick loop. It must not be invoked
// concurrently with itself; Start/Stop manage its single background
// goroutine (§5: "single-threaded cooperative... at most one tick runs at
// a time per process").
type Orchestrator struct {
	store    Store
	aiConfig *aiconfig.Reader
	scoring  *scoring.Job
	windows  *window.Advancer
	meta     *metaanalysis.Analyzer
	alerts   AlertEvaluator

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	wake     chan struct{}

	tickMu sync.Mutex

	intervalMu sync.Mutex
	interval   time.Duration
}

// New builds an Orchestrator. It starts at the minimum interval; the first
// tick establishes the real cadence.
func New(store Store, aiConfig *aiconfig.Reader, scoringJob *scoring.Job, windows *window.Advancer, meta *metaanalysis.Analyzer, alerts AlertEvaluator) *Orchestrator {
	return &Orchestrator{
		store: store, aiConfig: aiConfig, scoring: scoringJob, windows: windows, meta: meta, alerts: alerts,
		stopCh: make(chan struct{}), wake: make(chan struct{}, 1),
		interval: 15 * time.Minute,
	}
}

// Start begins the tick loop in a goroutine.
func (o *Orchestrator) Start(ctx context.Context) {
	o.wg.Add(1)
	go o.run(ctx)
}

// Stop signals the loop to stop and waits for it to finish.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stopCh) })
	o.wg.Wait()
}

// TriggerNow wakes the loop early (e.g. after a manual re-evaluate request),
// without blocking if a tick is already pending.
func (o *Orchestrator) TriggerNow() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) run(ctx context.Context) {
	defer o.wg.Done()
	log := slog.With("component", "orchestrator")
	log.Info("orchestrator started")

	for {
		select {
		case <-o.stopCh:
			log.Info("orchestrator shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, orchestrator shutting down")
			return
		case <-o.wake:
			o.runTick(ctx, log)
		case <-time.After(o.currentInterval()):
			o.runTick(ctx, log)
		}
	}
}

// runTick enforces non-reentrance: if the previous tick is still running
// (only possible if TriggerNow races the timer), this tick is skipped and
// the loop simply waits for the next wake/timer (§4.J: "skip and
// re-schedule").
func (o *Orchestrator) runTick(ctx context.Context, log *slog.Logger) {
	if !o.tickMu.TryLock() {
		log.Warn("tick already running, skipping")
		return
	}
	defer o.tickMu.Unlock()

	activity, err := o.tick(ctx)
	if err != nil {
		log.Error("tick failed", "error", err)
	}
	o.adjustInterval(ctx, activity)
}

func (o *Orchestrator) currentInterval() time.Duration {
	o.intervalMu.Lock()
	defer o.intervalMu.Unlock()
	// +/-10% jitter so multiple systems' orchestrators (if ever run as
	// separate processes) don't all wake in lockstep.
	jitter := time.Duration(rand.Int64N(int64(o.interval) / 5))
	return o.interval - time.Duration(int64(o.interval)/10) + jitter
}

func (o *Orchestrator) adjustInterval(ctx context.Context, activity bool) {
	pc, err := o.store.PipelineConfig(ctx)
	if err != nil {
		slog.Warn("orchestrator: failed to read pipeline config for cadence", "error", err)
		return
	}
	minInterval := time.Duration(pc.PipelineMinIntervalMinutes) * time.Minute
	maxInterval := time.Duration(pc.PipelineMaxIntervalMinutes) * time.Minute
	if minInterval <= 0 {
		minInterval = 15 * time.Minute
	}
	if maxInterval <= 0 {
		maxInterval = 120 * time.Minute
	}

	o.intervalMu.Lock()
	defer o.intervalMu.Unlock()
	if activity {
		o.interval = minInterval
		return
	}
	next := o.interval * 2
	if next > maxInterval {
		next = maxInterval
	}
	o.interval = next
}

// tick implements §4.J steps 1-6, returning whether any activity occurred
// (scored>0 || analyzed>0), the adaptive-cadence signal.
func (o *Orchestrator) tick(ctx context.Context) (bool, error) {
	aiCfg, err := o.aiConfig.Resolve(ctx)
	if err != nil {
		return false, err
	}
	if aiCfg.APIKey == "" {
		return false, nil
	}

	scoreResult, err := o.scoring.Run(ctx, 0)
	if err != nil {
		slog.Error("orchestrator: scoring run failed", "error", err)
	}

	systems, err := o.store.Systems(ctx)
	if err != nil {
		return scoreResult.Scored > 0, err
	}

	pc, err := o.store.PipelineConfig(ctx)
	if err != nil {
		return scoreResult.Scored > 0, err
	}
	guard := time.Duration(pc.WindowMinutes) * time.Minute

	analyzed := 0
	now := time.Now()
	for _, sys := range systems {
		windowIDs, err := o.windows.AdvanceScheduled(ctx, sys.ID, now, guard)
		if err != nil {
			slog.Error("orchestrator: windowing failed", "system_id", sys.ID, "error", err)
			continue
		}

		for _, windowID := range windowIDs {
			metaCfg, err := o.store.MetaAnalysisConfig(ctx, sys.ID)
			if err != nil {
				slog.Error("orchestrator: failed to load meta-analysis config", "system_id", sys.ID, "error", err)
				continue
			}

			ran, err := o.meta.Run(ctx, windowID, metaCfg)
			if err != nil {
				slog.Error("orchestrator: meta-analysis failed", "window_id", windowID, "error", err)
				continue
			}
			if !ran {
				continue
			}
			analyzed++

			if o.alerts != nil {
				if err := o.alerts.EvaluateAlerts(ctx, windowID); err != nil {
					slog.Error("orchestrator: alert evaluation failed", "window_id", windowID, "error", err)
				}
			}
		}
	}

	return scoreResult.Scored > 0 || analyzed > 0, nil
}
