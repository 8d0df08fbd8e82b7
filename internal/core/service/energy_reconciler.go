package service

import (
	"fmt"

	"github.com/berfenger/gridwatch/internal/core/domain"
	"github.com/berfenger/gridwatch/pkg/analyzer"

	"go.uber.org/zap"
)

// CounterState tracks one raw device counter and its monotonic total.
type CounterState struct {
	LastRaw uint64
	Total   uint64
}

// ReconcilerState is process-lifetime state, never persisted. It is
// rebuildable from the last stored sample plus one raw reading, or reset to
// an unknown baseline when the store is empty.
type ReconcilerState struct {
	Seeded   bool
	Imported CounterState
	Exported CounterState
}

// StateFromBaseline prepares an unseeded state whose totals continue from a
// previously stored sample, so a process restart neither regresses nor
// double-counts energy.
func StateFromBaseline(sample domain.CumulativeEnergySample) ReconcilerState {
	return ReconcilerState{
		Imported: CounterState{Total: sample.TotalImportedWh},
		Exported: CounterState{Total: sample.TotalExportedWh},
	}
}

// ReconcileWarning is non-fatal: the sample is still stored, the condition
// is surfaced to operators.
type ReconcileWarning struct {
	Counter string
	PrevRaw uint64
	Raw     uint64
	Delta   uint64
	Reason  string
}

// EnergyReconciler converts raw wrapping energy counters into monotonic
// cumulative totals, classifying counter movement as normal increment,
// wraparound or device reset.
type EnergyReconciler struct {
	widthBits  uint
	maxDeltaWh uint64
	logger     *zap.Logger
}

// NewEnergyReconciler builds a reconciler for counters of the given register
// width. maxDeltaWh is the maximum plausible energy delta within one poll
// interval; anything larger is treated as a device reset or a corrupt read,
// never accepted into the series.
func NewEnergyReconciler(widthBits uint, maxDeltaWh uint64, logger *zap.Logger) *EnergyReconciler {
	return &EnergyReconciler{
		widthBits:  widthBits,
		maxDeltaWh: maxDeltaWh,
		logger:     logger.With(zap.String("service", "reconciler")),
	}
}

// Reconcile folds one measurement into the running totals. The first call on
// an unseeded state is the baseline: raw counters are captured, delta is
// zero and the totals are whatever the state carried (zero on a fresh
// install, the recovered totals after a restart). This defines what
// "cumulative since installation" means across process restarts.
func (r *EnergyReconciler) Reconcile(m *analyzer.Measurement, state ReconcilerState) (domain.CumulativeEnergySample, ReconcilerState, []ReconcileWarning) {
	if !state.Seeded {
		state.Seeded = true
		state.Imported.LastRaw = m.EnergyImportedWh
		state.Exported.LastRaw = m.EnergyExportedWh
		return r.sampleFrom(m, state), state, nil
	}

	var warnings []ReconcileWarning

	newImported, warn := r.step("imported", state.Imported, m.EnergyImportedWh)
	if warn != nil {
		warnings = append(warnings, *warn)
	}
	newExported, warn := r.step("exported", state.Exported, m.EnergyExportedWh)
	if warn != nil {
		warnings = append(warnings, *warn)
	}

	state.Imported = newImported
	state.Exported = newExported

	for _, w := range warnings {
		r.logger.Warn("counter anomaly",
			zap.String("counter", w.Counter),
			zap.String("reason", w.Reason),
			zap.Uint64("prev_raw", w.PrevRaw),
			zap.Uint64("raw", w.Raw),
			zap.Uint64("delta", w.Delta))
	}

	return r.sampleFrom(m, state), state, warnings
}

func (r *EnergyReconciler) sampleFrom(m *analyzer.Measurement, state ReconcilerState) domain.CumulativeEnergySample {
	return domain.CumulativeEnergySample{
		Timestamp:       m.Timestamp,
		TotalImportedWh: state.Imported.Total,
		TotalExportedWh: state.Exported.Total,
	}
}

func (r *EnergyReconciler) step(name string, prev CounterState, raw uint64) (CounterState, *ReconcileWarning) {
	var delta uint64
	var warn *ReconcileWarning

	switch {
	case raw >= prev.LastRaw:
		delta = raw - prev.LastRaw
		if delta > r.maxDeltaWh {
			// forward jump beyond plausibility: likely a corrupt decode
			// that slipped past range checks. Re-baseline instead of
			// accepting the jump.
			warn = &ReconcileWarning{
				Counter: name, PrevRaw: prev.LastRaw, Raw: raw, Delta: delta,
				Reason: "implausible forward jump, re-baselined",
			}
			delta = 0
		}
	default:
		// counter went backwards: wraparound or device reset
		wrapDelta := r.wrapDelta(prev.LastRaw, raw)
		if wrapDelta <= r.maxDeltaWh {
			delta = wrapDelta
		} else if raw <= r.maxDeltaWh {
			// counter restarted from near zero
			delta = raw
			warn = &ReconcileWarning{
				Counter: name, PrevRaw: prev.LastRaw, Raw: raw, Delta: delta,
				Reason: "device reset detected",
			}
		} else {
			warn = &ReconcileWarning{
				Counter: name, PrevRaw: prev.LastRaw, Raw: raw, Delta: wrapDelta,
				Reason: "implausible counter regression, re-baselined",
			}
			delta = 0
		}
	}

	return CounterState{LastRaw: raw, Total: prev.Total + delta}, warn
}

// wrapDelta computes (2^W - prev) + raw for a counter of width W bits.
func (r *EnergyReconciler) wrapDelta(prev, raw uint64) uint64 {
	if r.widthBits >= 64 {
		return raw - prev // two's complement wrap
	}
	modulus := uint64(1) << r.widthBits
	return (modulus - prev) + raw
}

// String implements fmt.Stringer for operator-facing logs.
func (w ReconcileWarning) String() string {
	return fmt.Sprintf("%s counter: %s (prev=%d raw=%d delta=%d)",
		w.Counter, w.Reason, w.PrevRaw, w.Raw, w.Delta)
}
