package preflight

import (
	"context"

	"kthgpt/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Storage directory", cfg.Paths.StorageDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if cfg.Dispatch.Backend == "redis" {
		results = append(results, CheckRedis(ctx, cfg.Dispatch))
	}

	results = append(results, CheckLLM(ctx, "AI backend", cfg.LLM))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
