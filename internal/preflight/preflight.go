package preflight

import (
	"context"

	"dailybrief/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Options tunes RunAll.
type Options struct {
	// SkipNetwork omits checks that call remote services.
	SkipNetwork bool
}

// RunAll executes every applicable check for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Credentials directory", cfg.Paths.CredentialsDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	results = append(results, CheckSearch(cfg.Search))

	if !opts.SkipNetwork {
		results = append(results, CheckLLM(ctx, "Synthesis LLM", cfg.SynthesisLLM()))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
