package preflight

import (
	"context"

	"audioindex/internal/audioservice"
	"audioindex/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to cfg and backend. backend may be
// nil, in which case only filesystem checks run.
func RunAll(ctx context.Context, cfg *config.Config, backend audioservice.Backend) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	if cfg.IsLocal() {
		results = append(results, CheckDirectoryAccess("Blob directory", cfg.Paths.BlobDir))
	}
	results = append(results, CheckIndexFile("Index file", cfg.Paths.IndexPath))
	results = append(results, CheckIndexFile("Snapshot file", cfg.Paths.SnapshotPath))

	if backend == nil {
		return results
	}
	if prod, ok := backend.(*audioservice.ProductionBackend); ok {
		if primary := prod.Primary(); primary != nil {
			results = append(results, CheckReachable(ctx, "Primary store", primary))
		}
	}
	if pinger, ok := backend.Blobs().(Pinger); ok {
		results = append(results, CheckReachable(ctx, "Blob store", pinger))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
