// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s, dir
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func failedResult(id string) acquire.FinalResult {
	return acquire.FinalResult{
		Record: types.Record{ID: id},
		Outcomes: []acquire.Outcome{
			{Source: "unpaywall", Status: acquire.StatusNotFound, Reason: "not open access", Attempts: 1, Elapsed: 120 * time.Millisecond},
			{Source: "mirror", Status: acquire.StatusPermanent, Reason: "challenge", Blocked: true, Attempts: 1},
			{Source: "doi", Status: acquire.StatusTransient, Reason: "HTTP 503", Attempts: 3},
		},
	}
}

// --- schema tests ---

func TestOpenCreatesSchema(t *testing.T) {
	s, dir := testStore(t)

	for _, table := range []string{"runs", "attempts", "acquired"} {
		var count int
		err := s.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "state", "ledger.db")); err != nil {
		t.Errorf("ledger file not created: %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.BeginRun(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

// --- run lifecycle ---

func TestRunLifecycle(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx, 4)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Finished())
	assert.Equal(t, 4, runs[0].Inputs)

	sum := acquire.Summary{Total: 4, Succeeded: 2, Failed: 1, Skipped: 1}
	require.NoError(t, s.FinishRun(ctx, runID, sum))

	runs, err = s.Runs(ctx, 0)
	require.NoError(t, err)
	r := runs[0]
	assert.True(t, r.Finished())
	assert.True(t, r.FinishedAt.After(r.StartedAt))
	assert.Equal(t, 2, r.Succeeded)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 0, r.Cancelled)
}

func TestFinishUnknownRun(t *testing.T) {
	s, _ := testStore(t)
	assert.Error(t, s.FinishRun(context.Background(), "nope", acquire.Summary{}))
}

func TestRunsNewestFirstWithLimit(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.BeginRun(ctx, i)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := s.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestRunsOrderedAcrossSubSecondStarts(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time {
		now := clock
		clock = clock.Add(100 * time.Millisecond)
		return now
	}

	older, err := s.BeginRun(ctx, 1)
	require.NoError(t, err)
	newer, err := s.BeginRun(ctx, 1)
	require.NoError(t, err)

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer, runs[0].ID)
	assert.Equal(t, older, runs[1].ID)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
}

func TestFormatTimeSortsAsText(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := formatTime(base)
	b := formatTime(base.Add(100 * time.Millisecond))
	assert.Less(t, a, b)
	assert.True(t, parseTime(a).Equal(base))
}

// --- attempts ---

func TestRecordAttemptsInOrder(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	runID, err := s.BeginRun(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.Record(ctx, runID, failedResult("10.1000/a"), nil))

	got, err := s.Attempts(ctx, runID)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "unpaywall", got[0].Source)
	assert.Equal(t, acquire.StatusNotFound, got[0].Status)
	assert.Equal(t, 120*time.Millisecond, got[0].Elapsed)
	assert.True(t, got[1].Blocked)
	assert.Equal(t, acquire.StatusTransient, got[2].Status)
	assert.Equal(t, 3, got[2].Attempts)
	for i, a := range got {
		assert.Equal(t, i, a.Seq)
		assert.Equal(t, "10.1000/a", a.RecordID)
	}
}

func TestRecordSkippedWritesNothing(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	runID, err := s.BeginRun(ctx, 1)
	require.NoError(t, err)

	res := failedResult("10.1000/a")
	res.Skipped = true
	require.NoError(t, s.Record(ctx, runID, res, nil))

	got, err := s.Attempts(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSourceStats(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	runID, err := s.BeginRun(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, s.Record(ctx, runID, failedResult("10.1000/a"), nil))
	require.NoError(t, s.Record(ctx, runID, failedResult("10.1000/b"), nil))

	stats, err := s.SourceStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats["unpaywall"][acquire.StatusNotFound])
	assert.Equal(t, 2, stats["doi"][acquire.StatusTransient])
}

// --- resume ---

func TestAcquiredForResume(t *testing.T) {
	s, dir := testStore(t)
	ctx := context.Background()
	runID, err := s.BeginRun(ctx, 2)
	require.NoError(t, err)

	kept := filepath.Join(dir, "kept.pdf")
	writeFile(t, kept)
	gone := filepath.Join(dir, "gone.pdf")

	for _, p := range []*types.Paper{
		{ID: "10.1000/KEPT", Source: "openalex", SourceURL: "https://x/k.pdf", PDFPath: kept, Size: 8, SHA256: "abc",
			AcquiredAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		{ID: "10.1000/gone", Source: "doi", PDFPath: gone, Size: 8},
	} {
		res := acquire.FinalResult{
			Record:   types.Record{ID: p.ID},
			Source:   p.Source,
			Outcomes: []acquire.Outcome{{Source: p.Source, Status: acquire.StatusSuccess, Attempts: 1}},
		}
		require.NoError(t, s.Record(ctx, runID, res, p))
	}

	acquired, err := s.Acquired(ctx)
	require.NoError(t, err)
	require.Len(t, acquired, 1)

	p := acquired["10.1000/kept"]
	require.NotNil(t, p)
	assert.Equal(t, "10.1000/KEPT", p.ID)
	assert.Equal(t, "openalex", p.Source)
	assert.Equal(t, "https://x/k.pdf", p.SourceURL)
	assert.Equal(t, kept, p.PDFPath)
	assert.Equal(t, "abc", p.SHA256)
	assert.Equal(t, 2026, p.AcquiredAt.Year())
}

func TestAcquiredReplacedByLaterRun(t *testing.T) {
	s, dir := testStore(t)
	ctx := context.Background()

	path := filepath.Join(dir, "a.pdf")
	writeFile(t, path)

	for _, source := range []string{"doi", "arxiv"} {
		runID, err := s.BeginRun(ctx, 1)
		require.NoError(t, err)
		p := &types.Paper{ID: "10.1000/a", Source: source, PDFPath: path, Size: 8}
		require.NoError(t, s.Record(ctx, runID, acquire.FinalResult{Record: types.Record{ID: p.ID}, Source: source}, p))
	}

	acquired, err := s.Acquired(ctx)
	require.NoError(t, err)
	require.Len(t, acquired, 1)
	assert.Equal(t, "arxiv", acquired["10.1000/a"].Source)
}
