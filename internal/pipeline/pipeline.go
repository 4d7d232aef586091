// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates a transformation run: validate inputs,
// partition the page range, fan chunk tasks out over a bounded worker
// pool, collect results, and merge the artifacts back into one document
// in original page order.
//
// Chunk failures never abort sibling chunks. Every failure is recorded
// in the run report, and a run that produced output despite failures is
// marked partial, never complete.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/pageforge/internal/partition"
	"github.com/pdiddy/pageforge/internal/pdf"
	"github.com/pdiddy/pageforge/internal/transform"
	"github.com/pdiddy/pageforge/pkg/types"
)

var (
	// ErrMissingInput reports a source or auxiliary document that does
	// not exist. Detected before any worker is spawned.
	ErrMissingInput = errors.New("missing input")

	// ErrMerge reports a failure while concatenating chunk artifacts
	// into the final document.
	ErrMerge = errors.New("merging chunk artifacts")
)

// ChunksError reports the chunks that failed during a run. It is the
// error of a partial run (output written, pages missing) and of a total
// failure (no chunk succeeded, no output).
type ChunksError struct {
	Failed []types.ChunkResult
	Total  int
}

func (e *ChunksError) Error() string {
	return fmt.Sprintf("%d of %d chunks failed", len(e.Failed), e.Total)
}

// Options configures one run.
type Options struct {
	// Input is the source document path.
	Input string

	// Output is the final document path.
	Output string

	// Start and End select the half-open page range. End == 0 selects
	// through the last page; a negative End is an invalid range.
	Start, End int

	// Chain is the ordered transformation sequence.
	Chain []types.TransformSpec

	// Workers bounds the pool. Values <= 0 clamp to 1 with a warning;
	// callers wanting the machine default pass runtime.NumCPU().
	Workers int

	// TempDir overrides the parent of the per-run scratch directory.
	TempDir string

	// Append merges the new pages after an existing output document
	// instead of replacing it.
	Append bool

	// Compress rewrites the final output through the codec's optimizer.
	Compress bool

	// OnChunkDone, when set, fires after every collected chunk result.
	OnChunkDone func(done, total int)
}

// Run executes a full transformation run and always returns a report,
// even on failure. The error is nil only for a complete run; a
// *ChunksError marks chunk-level failures and leaves the report's
// status to distinguish partial from total failure.
func Run(ctx context.Context, codec pdf.Codec, runner Runner, opts Options, log zerolog.Logger) (*types.RunReport, error) {
	report := &types.RunReport{
		RunID:   uuid.NewString(),
		Input:   opts.Input,
		Output:  opts.Output,
		Chain:   opts.Chain,
		Status:  types.StatusFailed,
		Started: time.Now(),
	}
	defer func() { report.Finished = time.Now() }()

	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		report.Warnings = append(report.Warnings, msg)
		log.Warn().Str("run", report.RunID).Msg(msg)
	}

	// Validating.
	log.Debug().Str("run", report.RunID).Str("phase", "validating").Send()
	if _, err := os.Stat(opts.Input); err != nil {
		return report, fmt.Errorf("%w: source %s", ErrMissingInput, opts.Input)
	}
	for i, spec := range opts.Chain {
		if err := transform.Validate(spec); err != nil {
			return report, fmt.Errorf("chain step %d (%s): %w", i+1, spec.Kind, err)
		}
		for _, aux := range []string{spec.Background, spec.Merge} {
			if aux == "" {
				continue
			}
			if _, err := os.Stat(aux); err != nil {
				return report, fmt.Errorf("%w: %s document %s", ErrMissingInput, spec.Kind, aux)
			}
		}
	}
	totalPages, err := codec.PageCount(opts.Input)
	if err != nil {
		return report, err
	}
	report.TotalPages = totalPages

	// Partitioning.
	log.Debug().Str("run", report.RunID).Str("phase", "partitioning").Send()
	workers := opts.Workers
	if workers <= 0 {
		warn("worker count %d clamped to 1", workers)
		workers = 1
	}
	report.Workers = workers

	end := opts.End
	if end == 0 {
		end = totalPages
	}
	chunks, clamped, err := partition.Partition(totalPages, opts.Start, end, workers)
	if err != nil {
		return report, err
	}
	if clamped {
		warn("end page %d beyond document, clamped to %d", end, totalPages)
	}
	report.Range = types.PageRange{Start: chunks[0].Start, End: chunks[len(chunks)-1].End}

	tempParent := opts.TempDir
	if tempParent == "" {
		tempParent = os.TempDir()
	}
	tempDir, err := os.MkdirTemp(tempParent, "pageforge-"+report.RunID[:8]+"-")
	if err != nil {
		return report, fmt.Errorf("creating temp directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			warn("removing temp dir %s: %v", tempDir, err)
		}
	}()

	tasks := make([]types.ChunkTask, len(chunks))
	for i, r := range chunks {
		tasks[i] = types.ChunkTask{
			ID:     i,
			Source: opts.Input,
			Range:  r,
			Chain:  opts.Chain,
			Output: filepath.Join(tempDir, fmt.Sprintf("chunk-%03d.pdf", i)),
		}
	}

	// Dispatching and collecting.
	log.Info().Str("run", report.RunID).
		Int("pages", report.Range.Length()).
		Int("chunks", len(tasks)).
		Int("workers", workers).
		Msg("dispatching chunks")
	report.Chunks = collect(ctx, runner, tasks, workers, opts.OnChunkDone)
	for _, res := range report.Chunks {
		if res.Failed() {
			log.Warn().Str("run", report.RunID).
				Int("chunk", res.ID).
				Stringer("range", res.Range).
				Msg(res.Error)
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Merging.
	log.Debug().Str("run", report.RunID).Str("phase", "merging").Send()
	var artifacts []string
	for _, res := range report.Chunks {
		if !res.Failed() {
			artifacts = append(artifacts, res.Artifact)
		}
	}
	failed := report.FailedChunks()
	if len(artifacts) == 0 {
		return report, &ChunksError{Failed: failed, Total: len(report.Chunks)}
	}

	if opts.Append {
		if _, err := os.Stat(opts.Output); err == nil {
			existing := filepath.Join(tempDir, "existing.pdf")
			if err := copyFile(opts.Output, existing); err != nil {
				return report, fmt.Errorf("%w: preserving existing output: %v", ErrMerge, err)
			}
			artifacts = append([]string{existing}, artifacts...)
		}
	}
	if err := codec.MergeFiles(artifacts, opts.Output); err != nil {
		return report, fmt.Errorf("%w: %v", ErrMerge, err)
	}
	if opts.Compress {
		if err := codec.Optimize(opts.Output); err != nil {
			warn("compressing output: %v", err)
		}
	}

	if len(failed) > 0 {
		report.Status = types.StatusPartial
		return report, &ChunksError{Failed: failed, Total: len(report.Chunks)}
	}
	report.Status = types.StatusComplete
	log.Info().Str("run", report.RunID).
		Int("chunks", len(report.Chunks)).
		Str("output", opts.Output).
		Msg("run complete")
	return report, nil
}

// collect fans tasks out over a pool bounded by workers and returns all
// results sorted by chunk ID. Cancellation stops dispatching; tasks
// never dispatched are synthesized into failure results so the count
// always matches.
func collect(ctx context.Context, runner Runner, tasks []types.ChunkTask, workers int, onDone func(done, total int)) []types.ChunkResult {
	workCh := make(chan types.ChunkTask)
	resCh := make(chan types.ChunkResult, len(tasks))

	for i := 0; i < min(workers, len(tasks)); i++ {
		go func() {
			for task := range workCh {
				resCh <- runner.Run(ctx, task)
			}
		}()
	}

	go func() {
		defer close(workCh)
		for _, task := range tasks {
			select {
			case workCh <- task:
			case <-ctx.Done():
				resCh <- types.ChunkResult{
					ID:    task.ID,
					Range: task.Range,
					Error: fmt.Sprintf("cancelled before dispatch: %v", ctx.Err()),
				}
			}
		}
	}()

	results := make([]types.ChunkResult, 0, len(tasks))
	for range tasks {
		results = append(results, <-resCh)
		if onDone != nil {
			onDone(len(results), len(tasks))
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
