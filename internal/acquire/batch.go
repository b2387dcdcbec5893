// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/paper-fetch/pkg/types"
)

// Runner acquires a batch of records with at most Concurrency records in
// flight. Each record's sources run sequentially inside its own task; a
// failing record never affects the others.
type Runner struct {
	Acquirer    *Acquirer
	Concurrency int

	// Skip, when set, is consulted before a record is dispatched. Returning
	// true records the returned result (marked Skipped) without contacting
	// any source.
	Skip func(rec types.Record) (FinalResult, bool)

	// OnResult, when set, is called as each record finishes. It runs on
	// worker goroutines and must be safe for concurrent use.
	OnResult func(index int, res FinalResult)
}

// Run acquires every record and returns results index-aligned with
// records. Once ctx is cancelled no new record starts; records already in
// flight stop at their next cancellation check, and records never started
// are returned with Cancelled set.
func (r *Runner) Run(ctx context.Context, records []types.Record, descs []Descriptor, budget Budget) []FinalResult {
	results := make([]FinalResult, len(records))
	started := make([]bool, len(records))

	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))
	ordered := Order(descs)

	var wg sync.WaitGroup
	for i, rec := range records {
		if r.Skip != nil {
			if res, ok := r.Skip(rec); ok {
				res.Record = rec
				res.Skipped = true
				results[i] = res
				started[i] = true
				r.emit(i, res)
				continue
			}
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		// Acquire may succeed on an already-cancelled context.
		if ctx.Err() != nil {
			sem.Release(1)
			break
		}

		started[i] = true
		wg.Add(1)
		go func(i int, rec types.Record) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = r.runOne(ctx, rec, ordered, budget)
			r.emit(i, results[i])
		}(i, rec)
	}
	wg.Wait()

	for i, rec := range records {
		if started[i] {
			continue
		}
		results[i] = FinalResult{Record: rec, Cancelled: true}
		r.emit(i, results[i])
	}
	return results
}

// runOne shields the batch from a fault anywhere in a record's acquisition.
func (r *Runner) runOne(ctx context.Context, rec types.Record, descs []Descriptor, budget Budget) (res FinalResult) {
	defer func() {
		if p := recover(); p != nil {
			res = FinalResult{
				Record:   rec,
				Outcomes: []Outcome{Permanent("internal fault: %v", p)},
			}
		}
	}()
	return r.Acquirer.Acquire(ctx, rec, descs, budget)
}

func (r *Runner) emit(i int, res FinalResult) {
	if r.OnResult != nil {
		r.OnResult(i, res)
	}
}

// Summary counts batch results by verdict.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled int

	// BySource counts successes per source name.
	BySource map[string]int
}

// Summarize tallies results.
func Summarize(results []FinalResult) Summary {
	s := Summary{Total: len(results), BySource: make(map[string]int)}
	for _, r := range results {
		switch {
		case r.Skipped:
			s.Skipped++
		case r.OK():
			s.Succeeded++
			s.BySource[r.Source]++
		case r.Cancelled:
			s.Cancelled++
		default:
			s.Failed++
		}
	}
	return s
}

// SuccessRate returns successes (including skipped, already-acquired
// records) as a percentage of the total.
func (s Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded+s.Skipped) / float64(s.Total) * 100
}

// HasFailures reports whether any record failed or was cancelled.
func (s Summary) HasFailures() bool {
	return s.Failed > 0 || s.Cancelled > 0
}

func (s Summary) String() string {
	return fmt.Sprintf("%d acquired, %d skipped, %d failed, %d cancelled (total: %d, %.1f%%)",
		s.Succeeded, s.Skipped, s.Failed, s.Cancelled, s.Total, s.SuccessRate())
}
