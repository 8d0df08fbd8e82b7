package domain

import "time"

// CumulativeEnergySample is the persisted record of one successful poll
// cycle. Totals are monotonic: for any two consecutive stored samples the
// difference is non-negative and bounded by the configured maximum plausible
// delta per poll interval.
type CumulativeEnergySample struct {
	Timestamp       time.Time `json:"timestamp"`
	TotalImportedWh uint64    `json:"totalImportedWh"`
	TotalExportedWh uint64    `json:"totalExportedWh"`
}
