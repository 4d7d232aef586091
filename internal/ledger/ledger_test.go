// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pageforge/pkg/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(id string, status types.RunStatus) *types.RunReport {
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return &types.RunReport{
		RunID:      id,
		Input:      "lecture.pdf",
		Output:     "lecture_output.pdf",
		TotalPages: 12,
		Range:      types.PageRange{Start: 0, End: 12},
		Workers:    4,
		Chain: []types.TransformSpec{
			{Kind: types.KindResize, Size: "A5"},
		},
		Status: status,
		Chunks: []types.ChunkResult{
			{ID: 0, Range: types.PageRange{Start: 0, End: 6}, Pages: 6, Duration: 120 * time.Millisecond},
			{ID: 1, Range: types.PageRange{Start: 6, End: 12}, Error: "injected failure", Duration: 80 * time.Millisecond},
		},
		Warnings: []string{"end page 20 beyond document, clamped to 12"},
		Started:  started,
		Finished: started.Add(2 * time.Second),
	}
}

func TestRecordAndGet(t *testing.T) {
	s := openStore(t)
	want := sampleReport("0f4d6a1e-1111-2222-3333-444455556666", types.StatusPartial)
	require.NoError(t, s.RecordRun(context.Background(), want))

	got, err := s.Get(context.Background(), want.RunID)
	require.NoError(t, err)

	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.Input, got.Input)
	assert.Equal(t, want.TotalPages, got.TotalPages)
	assert.Equal(t, want.Range, got.Range)
	assert.Equal(t, types.StatusPartial, got.Status)
	assert.Equal(t, want.Chain, got.Chain)
	assert.Equal(t, want.Warnings, got.Warnings)
	require.Len(t, got.Chunks, 2)
	assert.Equal(t, 6, got.Chunks[0].Pages)
	assert.Equal(t, "injected failure", got.Chunks[1].Error)
	assert.Equal(t, 80*time.Millisecond, got.Chunks[1].Duration)
	assert.True(t, want.Started.Equal(got.Started))
}

func TestGetByPrefix(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.RecordRun(context.Background(), sampleReport("aaaa1111-0000-0000-0000-000000000000", types.StatusComplete)))
	require.NoError(t, s.RecordRun(context.Background(), sampleReport("aaab2222-0000-0000-0000-000000000000", types.StatusComplete)))

	got, err := s.Get(context.Background(), "aaaa")
	require.NoError(t, err)
	assert.Equal(t, "aaaa1111-0000-0000-0000-000000000000", got.RunID)

	_, err = s.Get(context.Background(), "aaa")
	assert.Error(t, err, "ambiguous prefix must be rejected")

	_, err = s.Get(context.Background(), "zzzz")
	assert.Error(t, err, "unknown run must be rejected")
}

func TestGetPrefixMatchesLiterally(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.RecordRun(context.Background(), sampleReport("aaaa1111-0000-0000-0000-000000000000", types.StatusComplete)))
	require.NoError(t, s.RecordRun(context.Background(), sampleReport("aaab2222-0000-0000-0000-000000000000", types.StatusComplete)))

	// SQL wildcard characters in the prefix must not match anything.
	for _, id := range []string{"%", "a%", "_aaa", "aaa_1111"} {
		_, err := s.Get(context.Background(), id)
		assert.Error(t, err, "prefix %q must not match as a wildcard", id)
	}
}

func TestRecent(t *testing.T) {
	s := openStore(t)
	for i := 0; i < 5; i++ {
		r := sampleReport(fmt.Sprintf("%d0000000-0000-0000-0000-000000000000", i), types.StatusComplete)
		r.Started = r.Started.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.RecordRun(context.Background(), r))
	}

	runs, err := s.Recent(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	// Newest first.
	assert.Equal(t, "40000000-0000-0000-0000-000000000000", runs[0].RunID)
	assert.Equal(t, "20000000-0000-0000-0000-000000000000", runs[2].RunID)
	// Listing omits chunk detail.
	assert.Empty(t, runs[0].Chunks)
}
