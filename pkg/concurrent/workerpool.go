// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds how many jobs run at once.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{
		workerCount: workerCount,
	}
}

// Run executes jobs and returns the first error. The context handed to the jobs is
// cancelled as soon as one of them fails.
func (wp *WorkerPool) Run(ctx context.Context, jobs ...func(ctx context.Context) error) error {
	if len(jobs) == 0 {
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(wp.workerCount)

	for _, job := range jobs {
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return job(groupCtx)
		})
	}

	return g.Wait()
}

// RunAll executes every job regardless of failures. The returned slice is indexed like
// jobs and holds nil for the jobs that succeeded; it is nil when all of them did.
func (wp *WorkerPool) RunAll(ctx context.Context, jobs ...func(ctx context.Context) error) []error {
	if len(jobs) == 0 {
		return nil
	}

	errs := make([]error, len(jobs))
	failed := false

	var g errgroup.Group
	g.SetLimit(wp.workerCount)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = job(ctx)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			failed = true
			break
		}
	}
	if !failed {
		return nil
	}
	return errs
}

// Map applies fn to every item concurrently and returns the results in item order.
// It stops at the first error.
func Map[T, R any](ctx context.Context, wp *WorkerPool, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	jobs := make([]func(context.Context) error, len(items))
	for i, item := range items {
		jobs[i] = func(ctx context.Context) error {
			result, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		}
	}

	if err := wp.Run(ctx, jobs...); err != nil {
		return nil, err
	}
	return results, nil
}
