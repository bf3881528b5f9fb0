package audit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/licenseaudit/internal/snapshot"
)

// Loader fetches one platform snapshot. *snapshot.Loader implements it.
type Loader interface {
	Load(ctx context.Context, platform string) snapshot.Result
}

// Runner processes platforms in parallel and merges their results.
type Runner struct {
	loader  Loader
	workers int

	// OnPlatform, when set, is called once per platform in completion
	// order from the goroutine that owns the aggregator.
	OnPlatform func(PlatformResult)
}

// NewRunner returns a Runner with at most workers platforms in flight.
// workers <= 0 means runtime.GOMAXPROCS(0).
func NewRunner(loader Loader, workers int) *Runner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{loader: loader, workers: workers}
}

// Run audits every platform and returns the merged totals.
//
// Platform failures never fail the run; they show up as zero counts and in
// Totals.Unavailable. Run only errors when ctx is cancelled, because the
// totals would then be incomplete.
func (r *Runner) Run(ctx context.Context, platforms []string) (*Totals, error) {
	results := make(chan PlatformResult, len(platforms))
	agg := NewAggregator()

	reduced := make(chan struct{})
	go func() {
		defer close(reduced)
		for res := range results {
			agg.Add(res)
			slog.Info("audit: platform done",
				"platform", res.Summary.Platform,
				"state", res.State,
				"valid", res.Summary.Valid,
				"invalid", res.Summary.Invalid,
				"records", res.Records,
				"candidates", res.Candidates,
				"elapsed", res.Elapsed,
			)
			if r.OnPlatform != nil {
				r.OnPlatform(res)
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, platform := range platforms {
		platform := platform
		g.Go(func() error {
			results <- Process(r.loader.Load(ctx, platform))
			return nil
		})
	}
	_ = g.Wait() // tasks report failures through PlatformResult
	close(results)
	<-reduced

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("audit: run interrupted: %w", err)
	}
	return agg.Totals(), nil
}
