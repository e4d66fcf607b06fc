package analyzer

import (
	"context"
	"fmt"

	"github.com/dgallion1/docstruct/internal/doctree"
	"golang.org/x/sync/errgroup"
)

// AnalyzeBatch analyzes sources in parallel, at most BatchConcurrency at a
// time. Results keep the order of sources. The first error cancels the rest.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, sources []doctree.Source, opts Options) ([]Result, error) {
	results := make([]Result, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.BatchConcurrency)

	// A shared progress callback cannot tell documents apart.
	opts.Streaming.OnProgress = nil

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := a.Analyze(gctx, src, opts)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", label(src, i), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func label(src doctree.Source, i int) string {
	if src.Filename != "" {
		return src.Filename
	}
	if src.Hints.Title != "" {
		return src.Hints.Title
	}
	return fmt.Sprintf("source %d", i)
}
