package store

import (
	"context"
	"testing"
	"time"

	"github.com/berfenger/gridwatch/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(ts time.Time, imported uint64) domain.CumulativeEnergySample {
	return domain.CumulativeEnergySample{
		Timestamp:       ts,
		TotalImportedWh: imported,
		TotalExportedWh: imported * 2,
	}
}

func TestMemoryStoreAppendLatest(t *testing.T) {

	require := require.New(t)

	s := NewMemoryStore()
	ctx := context.Background()

	latest, err := s.Latest(ctx)
	require.NoError(err)
	require.Nil(latest)

	base := time.Now()
	require.NoError(s.Append(ctx, sampleAt(base, 100)))
	require.NoError(s.Append(ctx, sampleAt(base.Add(10*time.Second), 150)))

	latest, err = s.Latest(ctx)
	require.NoError(err)
	require.NotNil(latest)
	assert.Equal(t, uint64(150), latest.TotalImportedWh)
}

func TestMemoryStoreRejectsOutOfOrderAppend(t *testing.T) {

	require := require.New(t)

	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	require.NoError(s.Append(ctx, sampleAt(base, 100)))

	err := s.Append(ctx, sampleAt(base.Add(-time.Second), 200))
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreRange(t *testing.T) {

	require := require.New(t)

	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(s.Append(ctx, sampleAt(base.Add(time.Duration(i)*time.Minute), uint64(i*100))))
	}

	// [start, end) over the middle of the series
	out, err := s.Range(ctx, base.Add(time.Minute), base.Add(3*time.Minute))
	require.NoError(err)
	require.Len(out, 2)
	assert.Equal(t, uint64(100), out[0].TotalImportedWh)
	assert.Equal(t, uint64(200), out[1].TotalImportedWh)
}
