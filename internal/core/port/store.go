package port

import (
	"context"
	"time"

	"github.com/berfenger/gridwatch/internal/core/domain"
)

// TimeSeriesStore is the append-only, ordered-by-timestamp store of energy
// samples. The poller is the sole writer; the HTTP API only reads.
type TimeSeriesStore interface {
	Append(ctx context.Context, sample domain.CumulativeEnergySample) error
	// Latest returns the newest stored sample, or nil when the store is
	// empty. Used to recover the reconciler baseline after a restart.
	Latest(ctx context.Context) (*domain.CumulativeEnergySample, error)
	// Range returns samples with start <= timestamp < end, ordered by
	// timestamp.
	Range(ctx context.Context, start, end time.Time) ([]domain.CumulativeEnergySample, error)
}
