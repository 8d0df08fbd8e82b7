package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/gridwatch/internal/config"
	"github.com/berfenger/gridwatch/internal/core/domain"
	"github.com/berfenger/gridwatch/internal/core/events"
	"github.com/berfenger/gridwatch/internal/core/port"
	"github.com/berfenger/gridwatch/internal/core/service"
	"github.com/berfenger/gridwatch/internal/metrics"
	. "github.com/berfenger/gridwatch/internal/util/actorutil"
	"github.com/berfenger/gridwatch/pkg/analyzer"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// PollerActor drives the poll loop: one tick asks the modbus actor for a
// measurement, reconciles energy counters, persists the sample and publishes
// sensor updates. Ticks never overlap: the next one is scheduled only after
// the previous cycle resolved.
type PollerActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	config      *config.Config
	modbusActor *actor.PID
	eventStream *eventstream.EventStream
	store       port.TimeSeriesStore
	reconciler  *service.EnergyReconciler
	metrics     *metrics.Metrics

	state           service.ReconcilerState
	lastMeasurement *analyzer.Measurement
	lastSample      *domain.CumulativeEnergySample
	backoff         time.Duration

	logger *zap.Logger
}

type pollTick struct {
}

type baselineResult struct {
	sample *domain.CumulativeEnergySample
	err    error
}

type storeResult struct {
	err error
}

func NewPollerActor(config *config.Config, modbusActor *actor.PID, eventStream *eventstream.EventStream,
	store port.TimeSeriesStore, reconciler *service.EnergyReconciler, metrics *metrics.Metrics, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:      config,
		modbusActor: modbusActor,
		eventStream: eventStream,
		store:       store,
		reconciler:  reconciler,
		metrics:     metrics,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_POLLER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.backoff = state.backoffInitial()

		// recover reconciler baseline from the store
		NewBackgroundTaskNoError(ctx, func() *baselineResult {
			sample, err := state.store.Latest(context.Background())
			return &baselineResult{sample: sample, err: err}
		}).WithTimeout(10 * time.Second).Recover(func(err error) baselineResult {
			return baselineResult{err: err}
		}).PipeTo(ctx.Self())

		state.behavior.Become(state.WaitingBaselineReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("poller@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) WaitingBaselineReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case baselineResult:
		if msg.err != nil {
			// an unreadable store is fatal: continuing would reset the
			// cumulative series to zero
			state.logger.Error("poller@baseline store read failed", zap.Error(msg.err))
			panic(msg.err)
		}
		if msg.sample != nil {
			state.logger.Info("poller@baseline recovered totals",
				zap.Uint64("imported_wh", msg.sample.TotalImportedWh),
				zap.Uint64("exported_wh", msg.sample.TotalExportedWh))
			state.state = service.StateFromBaseline(*msg.sample)
			state.lastSample = msg.sample
		} else {
			state.logger.Info("poller@baseline empty store, starting from zero")
		}

		state.scheduleTick(ctx, 0)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("poller@baseline: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetLastSampleRequest:
		state.logger.Debug("poller@default: GetLastSampleRequest")
		ForRequest(msg).Respond(ctx, domain.GetLastSampleResponse{
			Measurement: state.lastMeasurement,
			Sample:      state.lastSample,
		})
	case pollTick:
		state.logger.Debug("poller@default tick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.PollMeasurementRequest{}, state.requestTimeout()), func(err error) any {
			return domain.PollMeasurementResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.BecomeStacked(state.WaitingPollReceive)
	default:
		state.logger.Debug("poller@default: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) WaitingPollReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.PollMeasurementResponse:
		if msg.HasResponseError() {
			state.handlePollError(ctx, msg.GetResponseError())
			return
		}
		state.handlePollSuccess(ctx, msg.Measurement)
	case domain.GetLastSampleRequest:
		// served from cache, safe to answer mid-cycle
		ForRequest(msg).Respond(ctx, domain.GetLastSampleResponse{
			Measurement: state.lastMeasurement,
			Sample:      state.lastSample,
		})
	case storeResult:
		if msg.err != nil {
			// the sample is lost for the series, totals stay consistent
			state.logger.Warn("poller@waiting sample not persisted (data loss)", zap.Error(msg.err))
			state.metrics.StoreAppendFailures.Inc()
		}
		state.backoff = state.backoffInitial()
		state.scheduleTick(ctx, state.interval())
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("poller@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) handlePollError(ctx actor.Context, err error) {
	if analyzer.IsDecodeError(err) {
		// decode glitches drop the cycle; reconciler state is untouched and
		// the next poll runs at the normal cadence
		state.logger.Warn("poller@waiting cycle dropped on decode error", zap.Error(err))
		state.metrics.PollCycles.WithLabelValues(metrics.PollResultDecode).Inc()
		state.scheduleTick(ctx, state.interval())
	} else {
		state.logger.Error("poller@waiting poll failed", zap.Error(err), zap.Duration("retry_in", state.backoff))
		state.metrics.PollCycles.WithLabelValues(metrics.PollResultTransport).Inc()
		state.scheduleTick(ctx, state.backoff)
		state.backoff = min(state.backoff*2, state.backoffMax())
	}
	state.behavior.UnbecomeStacked()
	state.stash.UnstashAll(ctx)
}

func (state *PollerActor) handlePollSuccess(ctx actor.Context, m *analyzer.Measurement) {
	sample, newState, warnings := state.reconciler.Reconcile(m, state.state)
	state.state = newState
	for _, w := range warnings {
		state.metrics.ReconcileWarnings.WithLabelValues(w.Counter).Inc()
	}

	state.lastMeasurement = m
	state.lastSample = &sample

	state.metrics.PollCycles.WithLabelValues(metrics.PollResultSuccess).Inc()
	state.metrics.ActivePowerWatt.Set(m.ActivePowerWatt)
	state.metrics.TotalImportedWh.Set(float64(sample.TotalImportedWh))
	state.metrics.TotalExportedWh.Set(float64(sample.TotalExportedWh))

	for _, ev := range events.MeasurementToUpdateEvents(m) {
		state.eventStream.Publish(ev)
	}
	for _, ev := range events.EnergySampleToUpdateEvents(sample) {
		state.eventStream.Publish(ev)
	}

	// persist sample off the actor goroutine, then schedule the next tick
	NewBackgroundTaskNoError(ctx, func() *storeResult {
		return &storeResult{err: state.store.Append(context.Background(), sample)}
	}).WithTimeout(10 * time.Second).Recover(func(err error) storeResult {
		return storeResult{err: err}
	}).PipeTo(ctx.Self())
}

func (state *PollerActor) scheduleTick(ctx actor.Context, delay time.Duration) {
	state.scheduler.RequestOnce(delay, ctx.Self(), pollTick{})
}

func (state *PollerActor) interval() time.Duration {
	return time.Duration(state.config.Poller.IntervalMillis) * time.Millisecond
}

func (state *PollerActor) requestTimeout() time.Duration {
	// leave room for all register blocks plus the background task overhead
	return time.Duration(state.config.AnalyzerModbusTcp.TimeoutMillis)*time.Millisecond*2 + 1*time.Second
}

func (state *PollerActor) backoffInitial() time.Duration {
	return time.Duration(state.config.Poller.BackoffInitialMillis) * time.Millisecond
}

func (state *PollerActor) backoffMax() time.Duration {
	return time.Duration(state.config.Poller.BackoffMaxMillis) * time.Millisecond
}
