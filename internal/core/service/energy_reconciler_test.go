package service

import (
	"math/rand/v2"
	"testing"

	"github.com/berfenger/gridwatch/internal/core/domain"
	"github.com/berfenger/gridwatch/pkg/analyzer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testReconciler(maxDelta uint64) *EnergyReconciler {
	return NewEnergyReconciler(32, maxDelta, zap.Must(zap.NewDevelopment()))
}

func measurementWithCounters(importedWh, exportedWh uint64) *analyzer.Measurement {
	return analyzer.TestMeasurement(320, importedWh, exportedWh)
}

func TestSeedingCycle(t *testing.T) {

	require := require.New(t)

	rec := testReconciler(10000)

	// first successful poll always reports delta 0 against itself
	raws := []uint64{100, 150, 225}
	wantTotals := []uint64{0, 50, 125}

	var state ReconcilerState
	for i, raw := range raws {
		sample, newState, warnings := rec.Reconcile(measurementWithCounters(raw, raw*2), state)
		require.Empty(warnings)
		assert.Equal(t, wantTotals[i], sample.TotalImportedWh, "cycle %d", i)
		state = newState
	}
	assert.Equal(t, uint64(250), state.Exported.Total)
}

func TestSeedingFromStoredBaseline(t *testing.T) {

	require := require.New(t)

	rec := testReconciler(10000)

	state := StateFromBaseline(domain.CumulativeEnergySample{
		TotalImportedWh: 500000,
		TotalExportedWh: 1200000,
	})

	sample, state, warnings := rec.Reconcile(measurementWithCounters(987654, 321), state)
	require.Empty(warnings)
	assert.Equal(t, uint64(500000), sample.TotalImportedWh)
	assert.Equal(t, uint64(1200000), sample.TotalExportedWh)

	// next increment continues from the recovered totals
	sample, _, warnings = rec.Reconcile(measurementWithCounters(987754, 421), state)
	require.Empty(warnings)
	assert.Equal(t, uint64(500100), sample.TotalImportedWh)
	assert.Equal(t, uint64(1200100), sample.TotalExportedWh)
}

func TestWraparound(t *testing.T) {

	require := require.New(t)

	rec := testReconciler(10000)

	state := ReconcilerState{
		Seeded:   true,
		Imported: CounterState{LastRaw: 4294967290, Total: 1000},
		Exported: CounterState{LastRaw: 0, Total: 0},
	}

	// 32-bit counter wrapped: delta must be 11, not a negative or
	// implausible value
	sample, _, warnings := rec.Reconcile(measurementWithCounters(5, 0), state)
	require.Empty(warnings)
	assert.Equal(t, uint64(1011), sample.TotalImportedWh)
}

func TestDeviceReset(t *testing.T) {

	rec := testReconciler(10000)

	state := ReconcilerState{
		Seeded:   true,
		Imported: CounterState{LastRaw: 1000000, Total: 1000000},
		Exported: CounterState{LastRaw: 0, Total: 0},
	}

	// regression too large for wraparound: counter restarted near zero
	sample, _, warnings := rec.Reconcile(measurementWithCounters(50, 0), state)
	require.Len(t, warnings, 1)
	assert.Equal(t, "imported", warnings[0].Counter)
	assert.Equal(t, uint64(50), warnings[0].Delta)
	assert.Equal(t, uint64(1000050), sample.TotalImportedWh)
}

func TestImplausibleForwardJump(t *testing.T) {

	rec := testReconciler(10000)

	state := ReconcilerState{
		Seeded:   true,
		Imported: CounterState{LastRaw: 1000, Total: 1000},
		Exported: CounterState{LastRaw: 0, Total: 0},
	}

	sample, newState, warnings := rec.Reconcile(measurementWithCounters(900000, 0), state)
	require.Len(t, warnings, 1)
	// the jump is not accepted; the counter is re-baselined
	assert.Equal(t, uint64(1000), sample.TotalImportedWh)
	assert.Equal(t, uint64(900000), newState.Imported.LastRaw)
}

func TestTotalsNeverDecrease(t *testing.T) {

	rec := testReconciler(5000)

	var state ReconcilerState
	var prevImported, prevExported uint64
	raw := uint64(4294960000) // close to 32-bit wrap

	for i := 0; i < 500; i++ {
		raw = (raw + rand.Uint64N(6000)) % (1 << 32)
		sample, newState, _ := rec.Reconcile(measurementWithCounters(raw, raw), state)
		assert.GreaterOrEqual(t, sample.TotalImportedWh, prevImported, "iteration %d", i)
		assert.GreaterOrEqual(t, sample.TotalExportedWh, prevExported, "iteration %d", i)
		assert.LessOrEqual(t, sample.TotalImportedWh-prevImported, uint64(5000), "iteration %d", i)
		prevImported = sample.TotalImportedWh
		prevExported = sample.TotalExportedWh
		state = newState
	}
}
