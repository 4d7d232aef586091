// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pageforge/internal/partition"
	"github.com/pdiddy/pageforge/internal/pdf"
	"github.com/pdiddy/pageforge/internal/transform"
	"github.com/pdiddy/pageforge/pkg/types"
)

func newDoc(t *testing.T, e *pdf.Engine, name string, dims ...[2]float64) string {
	t.Helper()
	b := e.NewBuilder()
	for _, d := range dims {
		if _, err := b.NewBlankPage(d[0], d[1]); err != nil {
			t.Fatalf("NewBlankPage: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), name)
	if err := b.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	return path
}

func uniformDims(n int, w, h float64) [][2]float64 {
	dims := make([][2]float64, n)
	for i := range dims {
		dims[i] = [2]float64{w, h}
	}
	return dims
}

func pageDims(t *testing.T, e *pdf.Engine, path string) [][2]float64 {
	t.Helper()
	doc, err := e.Open(path)
	if err != nil {
		t.Fatalf("Open %s: %v", path, err)
	}
	dims := make([][2]float64, doc.PageCount())
	for i := range dims {
		p, err := doc.Page(i)
		if err != nil {
			t.Fatalf("Page(%d): %v", i, err)
		}
		dims[i] = [2]float64{p.Width(), p.Height()}
	}
	return dims
}

func inproc(e *pdf.Engine) Runner {
	return &InProcessRunner{Codec: e, Log: zerolog.Nop()}
}

func TestRunComplete(t *testing.T) {
	e := pdf.NewEngine()
	src := newDoc(t, e, "src.pdf", uniformDims(12, 595, 842)...)
	out := filepath.Join(t.TempDir(), "out.pdf")
	tempParent := t.TempDir()

	report, err := Run(context.Background(), e, inproc(e), Options{
		Input:   src,
		Output:  out,
		Chain:   []types.TransformSpec{{Kind: types.KindResize, Size: "A5"}},
		Workers: 4,
		TempDir: tempParent,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != types.StatusComplete {
		t.Errorf("Status = %s, want complete", report.Status)
	}
	if len(report.Chunks) != 4 {
		t.Errorf("got %d chunks, want 4", len(report.Chunks))
	}
	for i, c := range report.Chunks {
		if c.ID != i || c.Pages != 3 {
			t.Errorf("chunk %d: ID=%d Pages=%d, want ID=%d Pages=3", i, c.ID, c.Pages, i)
		}
	}

	dims := pageDims(t, e, out)
	if len(dims) != 12 {
		t.Fatalf("output has %d pages, want 12", len(dims))
	}
	for i, d := range dims {
		if d[0] < 419 || d[0] > 421 || d[1] < 594 || d[1] > 596 {
			t.Errorf("page %d = %.1f x %.1f, want A5", i, d[0], d[1])
		}
	}

	// The run's scratch directory must be gone.
	entries, err := os.ReadDir(tempParent)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp parent not empty after run: %v", entries)
	}
}

func TestRunWorkerEquivalence(t *testing.T) {
	// A multi-worker run must reproduce the single-worker page
	// sequence exactly, for any chunk count.
	e := pdf.NewEngine()
	src := newDoc(t, e, "src.pdf",
		[2]float64{595, 842}, [2]float64{420, 595}, [2]float64{842, 595},
		[2]float64{612, 792}, [2]float64{595, 842}, [2]float64{298, 420},
		[2]float64{1191, 842})
	chain := []types.TransformSpec{{Kind: types.KindDuplicate}}

	var want [][2]float64
	for workers := 1; workers <= 7; workers++ {
		out := filepath.Join(t.TempDir(), fmt.Sprintf("out-%d.pdf", workers))
		report, err := Run(context.Background(), e, inproc(e), Options{
			Input:   src,
			Output:  out,
			Chain:   chain,
			Workers: workers,
		}, zerolog.Nop())
		if err != nil {
			t.Fatalf("Run(workers=%d): %v", workers, err)
		}
		if report.Status != types.StatusComplete {
			t.Fatalf("Run(workers=%d) status = %s", workers, report.Status)
		}
		dims := pageDims(t, e, out)
		if workers == 1 {
			want = dims
			continue
		}
		if len(dims) != len(want) {
			t.Fatalf("workers=%d produced %d pages, workers=1 produced %d", workers, len(dims), len(want))
		}
		for i := range dims {
			if dims[i] != want[i] {
				t.Errorf("workers=%d page %d = %v, want %v", workers, i, dims[i], want[i])
			}
		}
	}
}

// failRunner fails selected chunk IDs and delegates the rest.
type failRunner struct {
	inner   Runner
	failIDs map[int]bool
}

func (r *failRunner) Run(ctx context.Context, task types.ChunkTask) types.ChunkResult {
	if r.failIDs[task.ID] {
		return types.ChunkResult{ID: task.ID, Range: task.Range, Error: "injected failure"}
	}
	return r.inner.Run(ctx, task)
}

func TestRunPartialFailure(t *testing.T) {
	e := pdf.NewEngine()
	src := newDoc(t, e, "src.pdf", uniformDims(8, 595, 842)...)
	out := filepath.Join(t.TempDir(), "out.pdf")

	runner := &failRunner{inner: inproc(e), failIDs: map[int]bool{1: true}}
	report, err := Run(context.Background(), e, runner, Options{
		Input:   src,
		Output:  out,
		Workers: 4,
	}, zerolog.Nop())

	var ce *ChunksError
	if !errors.As(err, &ce) {
		t.Fatalf("Run error = %v, want *ChunksError", err)
	}
	if len(ce.Failed) != 1 || ce.Failed[0].ID != 1 {
		t.Errorf("ChunksError.Failed = %+v, want chunk 1", ce.Failed)
	}
	if report.Status != types.StatusPartial {
		t.Errorf("Status = %s, want partial", report.Status)
	}

	// The other three chunks (2 pages each) still made it into output.
	dims := pageDims(t, e, out)
	if len(dims) != 6 {
		t.Errorf("output has %d pages, want 6 (chunk 1's pages missing)", len(dims))
	}
}

func TestRunTotalFailure(t *testing.T) {
	e := pdf.NewEngine()
	src := newDoc(t, e, "src.pdf", uniformDims(4, 595, 842)...)
	out := filepath.Join(t.TempDir(), "out.pdf")

	runner := &failRunner{failIDs: map[int]bool{0: true, 1: true}}
	report, err := Run(context.Background(), e, runner, Options{
		Input:   src,
		Output:  out,
		Workers: 2,
	}, zerolog.Nop())

	var ce *ChunksError
	if !errors.As(err, &ce) {
		t.Fatalf("Run error = %v, want *ChunksError", err)
	}
	if report.Status != types.StatusFailed {
		t.Errorf("Status = %s, want failed", report.Status)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output written despite total failure")
	}
}

func TestRunMissingInputs(t *testing.T) {
	e := pdf.NewEngine()
	src := newDoc(t, e, "src.pdf", uniformDims(2, 595, 842)...)
	missing := filepath.Join(t.TempDir(), "missing.pdf")

	_, err := Run(context.Background(), e, inproc(e), Options{
		Input:   missing,
		Output:  filepath.Join(t.TempDir(), "out.pdf"),
		Workers: 1,
	}, zerolog.Nop())
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("missing source: error = %v, want ErrMissingInput", err)
	}

	_, err = Run(context.Background(), e, inproc(e), Options{
		Input:   src,
		Output:  filepath.Join(t.TempDir(), "out.pdf"),
		Chain:   []types.TransformSpec{{Kind: types.KindMergeSideBySide, Merge: missing}},
		Workers: 1,
	}, zerolog.Nop())
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("missing merge document: error = %v, want ErrMissingInput", err)
	}
}

func TestRunInvalidChainFailsBeforeDispatch(t *testing.T) {
	e := pdf.NewEngine()
	src := newDoc(t, e, "src.pdf", uniformDims(2, 595, 842)...)
	out := filepath.Join(t.TempDir(), "out.pdf")
	tempParent := t.TempDir()

	report, err := Run(context.Background(), e, inproc(e), Options{
		Input:   src,
		Output:  out,
		Chain:   []types.TransformSpec{{Kind: types.KindAddNoteMargin, Margin: 1.0}},
		Workers: 2,
		TempDir: tempParent,
	}, zerolog.Nop())
	if !errors.Is(err, transform.ErrInvalidMargin) {
		t.Fatalf("Run error = %v, want ErrInvalidMargin", err)
	}
	if len(report.Chunks) != 0 {
		t.Error("chunks were dispatched despite an invalid chain")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output written despite validation failure")
	}
	entries, _ := os.ReadDir(tempParent)
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestRunNegativeEnd(t *testing.T) {
	// Only End == 0 means "through the last page"; a negative End is an
	// invalid range, not a whole-document run.
	e := pdf.NewEngine()
	src := newDoc(t, e, "src.pdf", uniformDims(5, 595, 842)...)

	report, err := Run(context.Background(), e, inproc(e), Options{
		Input:   src,
		Output:  filepath.Join(t.TempDir(), "out.pdf"),
		End:     -3,
		Workers: 2,
	}, zerolog.Nop())
	if !errors.Is(err, partition.ErrInvalidRange) {
		t.Fatalf("Run error = %v, want ErrInvalidRange", err)
	}
	if report.Status != types.StatusFailed {
		t.Errorf("Status = %s, want failed", report.Status)
	}
	if len(report.Chunks) != 0 {
		t.Error("chunks were dispatched despite an invalid range")
	}
}

func TestRunWarnings(t *testing.T) {
	e := pdf.NewEngine()
	src := newDoc(t, e, "src.pdf", uniformDims(3, 595, 842)...)

	report, err := Run(context.Background(), e, inproc(e), Options{
		Input:   src,
		Output:  filepath.Join(t.TempDir(), "out.pdf"),
		Workers: -2, // clamps to 1
		End:     50, // clamps to 3
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Workers != 1 {
		t.Errorf("Workers = %d, want clamped 1", report.Workers)
	}
	var clampWorkers, clampEnd bool
	for _, w := range report.Warnings {
		if strings.Contains(w, "clamped to 1") {
			clampWorkers = true
		}
		if strings.Contains(w, "clamped to 3") {
			clampEnd = true
		}
	}
	if !clampWorkers || !clampEnd {
		t.Errorf("Warnings = %v, want both clamp warnings", report.Warnings)
	}
}

func TestRunCancelled(t *testing.T) {
	e := pdf.NewEngine()
	src := newDoc(t, e, "src.pdf", uniformDims(4, 595, 842)...)
	out := filepath.Join(t.TempDir(), "out.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, e, inproc(e), Options{
		Input:   src,
		Output:  out,
		Chain:   []types.TransformSpec{{Kind: types.KindDuplicate}},
		Workers: 2,
	}, zerolog.Nop())
	if err == nil {
		t.Fatal("Run succeeded under a cancelled context")
	}
	if report.Status != types.StatusFailed {
		t.Errorf("Status = %s, want failed", report.Status)
	}
}

func TestRunAppend(t *testing.T) {
	e := pdf.NewEngine()
	src := newDoc(t, e, "src.pdf", uniformDims(3, 595, 842)...)
	out := filepath.Join(t.TempDir(), "out.pdf")

	for i := 0; i < 2; i++ {
		if _, err := Run(context.Background(), e, inproc(e), Options{
			Input:   src,
			Output:  out,
			Workers: 2,
			Append:  true,
		}, zerolog.Nop()); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	n, err := e.PageCount(out)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 6 {
		t.Errorf("appended output has %d pages, want 6", n)
	}
}
