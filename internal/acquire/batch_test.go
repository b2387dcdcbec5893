// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-fetch/pkg/types"
)

func records(n int) []types.Record {
	recs := make([]types.Record, n)
	for i := range recs {
		recs[i] = types.Record{ID: fmt.Sprintf("10.1000/r%d", i)}
	}
	return recs
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	a := AdapterFunc(func(ctx context.Context, _ types.Record) Outcome {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return Success(samplePDF("x"), "application/pdf", "")
	})

	r := &Runner{Acquirer: NewAcquirer(NewValidator(0), nil), Concurrency: 3}
	results := r.Run(context.Background(), records(20), []Descriptor{desc("A", 1, a)}, testBudget(0))

	require.Len(t, results, 20)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(0))
	for i, res := range results {
		assert.True(t, res.OK(), "record %d", i)
		assert.Equal(t, fmt.Sprintf("10.1000/r%d", i), res.Record.ID, "results stay index-aligned")
	}
}

func TestRunnerSequentialOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	a := AdapterFunc(func(_ context.Context, rec types.Record) Outcome {
		mu.Lock()
		order = append(order, rec.ID)
		mu.Unlock()
		return NotFound("none")
	})

	var done []int
	r := &Runner{
		Acquirer:    NewAcquirer(lenient, nil),
		Concurrency: 1,
		OnResult: func(i int, _ FinalResult) {
			mu.Lock()
			done = append(done, i)
			mu.Unlock()
		},
	}
	recs := records(5)
	r.Run(context.Background(), recs, []Descriptor{desc("A", 1, a)}, testBudget(0))

	want := make([]string, len(recs))
	for i, rec := range recs {
		want[i] = rec.ID
	}
	assert.Equal(t, want, order)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, done)
}

func TestRunnerIsolatesFailures(t *testing.T) {
	a := AdapterFunc(func(_ context.Context, rec types.Record) Outcome {
		switch rec.ID {
		case "10.1000/r1":
			panic("adapter bug")
		case "10.1000/r2":
			return Permanent("denied")
		}
		return Success(samplePDF(rec.ID), "application/pdf", "")
	})

	r := &Runner{Acquirer: NewAcquirer(NewValidator(0), nil), Concurrency: 4}
	results := r.Run(context.Background(), records(4), []Descriptor{desc("A", 1, a)}, testBudget(0))

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.False(t, results[2].OK())
	assert.True(t, results[3].OK())

	s := Summarize(results)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, map[string]int{"A": 2}, s.BySource)
	assert.True(t, s.HasFailures())
}

func TestRunnerNilAcquirerIsContained(t *testing.T) {
	r := &Runner{Concurrency: 2}
	results := r.Run(context.Background(), records(2), nil, testBudget(0))
	for _, res := range results {
		assert.False(t, res.OK())
		require.Len(t, res.Outcomes, 1)
		assert.Contains(t, res.Outcomes[0].Reason, "internal fault")
	}
}

func TestRunnerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	a := AdapterFunc(func(ctx context.Context, rec types.Record) Outcome {
		if calls.Add(1) == 2 {
			cancel()
		}
		return Success(samplePDF(rec.ID), "application/pdf", "")
	})

	r := &Runner{Acquirer: NewAcquirer(NewValidator(0), nil), Concurrency: 1}
	results := r.Run(ctx, records(6), []Descriptor{desc("A", 1, a)}, testBudget(0))

	require.Len(t, results, 6)
	assert.True(t, results[0].OK())
	for i := 2; i < 6; i++ {
		assert.True(t, results[i].Cancelled, "record %d", i)
		assert.Empty(t, results[i].Outcomes, "record %d was never started", i)
	}
	assert.EqualValues(t, 2, calls.Load())

	s := Summarize(results)
	assert.Equal(t, 4, s.Cancelled)
	assert.True(t, s.HasFailures())
}

func TestRunnerSkip(t *testing.T) {
	var calls atomic.Int32
	a := AdapterFunc(func(_ context.Context, rec types.Record) Outcome {
		calls.Add(1)
		return Success(samplePDF(rec.ID), "application/pdf", "")
	})

	r := &Runner{
		Acquirer:    NewAcquirer(NewValidator(0), nil),
		Concurrency: 2,
		Skip: func(rec types.Record) (FinalResult, bool) {
			if rec.ID == "10.1000/r0" {
				return FinalResult{Source: "unpaywall"}, true
			}
			return FinalResult{}, false
		},
	}
	results := r.Run(context.Background(), records(3), []Descriptor{desc("A", 1, a)}, testBudget(0))

	assert.True(t, results[0].Skipped)
	assert.False(t, results[0].OK(), "skipped records are not counted as fresh acquisitions")
	assert.Equal(t, "10.1000/r0", results[0].Record.ID)
	assert.EqualValues(t, 2, calls.Load())

	s := Summarize(results)
	assert.Equal(t, Summary{Total: 3, Succeeded: 2, Skipped: 1, BySource: map[string]int{"A": 2}}, s)
	assert.InDelta(t, 100.0, s.SuccessRate(), 0.001)
	assert.False(t, s.HasFailures())
}

func TestSummaryString(t *testing.T) {
	s := Summary{Total: 4, Succeeded: 2, Failed: 1, Cancelled: 1}
	assert.Equal(t, "2 acquired, 0 skipped, 1 failed, 1 cancelled (total: 4, 50.0%)", s.String())
	assert.Zero(t, Summary{}.SuccessRate())
}
