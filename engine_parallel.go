package scopegraph

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/jward/scopegraph/internal/parse"
	"github.com/jward/scopegraph/scope"
	"github.com/jward/scopegraph/internal/store"
)

// parseJob carries one file through the parse phase. content is dropped once
// parsed.
type parseJob struct {
	file    *store.File
	content []byte

	unit   *scope.Unit
	syntax *parse.ParseError // set when unit was recovered from a file with syntax errors
	err    error
}

func (j *parseJob) run(ctx context.Context) {
	unit, err := parse.File(ctx, j.file.Path, j.content)
	j.content = nil

	var perr *parse.ParseError
	switch {
	case err == nil:
		j.unit = unit
	case errors.As(err, &perr) && unit != nil:
		j.unit, j.syntax = unit, perr
	default:
		j.err = err
	}
}

// parseParallel parses jobs on at most e.workers goroutines. Per-file
// failures are recorded on the job; only cancellation fails the batch.
func (e *Engine) parseParallel(ctx context.Context, jobs []*parseJob) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(e.workers, len(jobs)))
	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			job.run(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (e *Engine) parseSerial(ctx context.Context, jobs []*parseJob) error {
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		job.run(ctx)
	}
	return nil
}
