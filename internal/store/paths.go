// Package store owns every file the pipeline persists: the append-only raw
// CSV stores, the per-run merged output, the failure-ledger path, and the
// analytics artifacts. Raw stores are append-only; everything derived is a
// full overwrite. No writer in this package mutates a file in place.
package store

import "path/filepath"

// Fixed filenames under the data directory. The raw store schemas and the
// ledger format are compatibility surfaces shared with earlier collectors,
// so they are not configurable.
const (
	rawDirName       = "raw"
	processedDirName = "processed"
	analyticsDirName = "analytics"

	weatherFileName = "weather_data.csv"
	energyFileName  = "energy_data.csv"
	ledgerFileName  = "failure_ledger.json"
)

// LedgerPath returns the failure-ledger file path under dataDir.
func LedgerPath(dataDir string) string {
	return filepath.Join(dataDir, ledgerFileName)
}

// RawDir returns the raw-store directory under dataDir.
func RawDir(dataDir string) string {
	return filepath.Join(dataDir, rawDirName)
}

// ProcessedDir returns the merged-output directory under dataDir.
func ProcessedDir(dataDir string) string {
	return filepath.Join(dataDir, processedDirName)
}

// AnalyticsDir returns the analytics-artifact directory under dataDir.
func AnalyticsDir(dataDir string) string {
	return filepath.Join(dataDir, analyticsDirName)
}
