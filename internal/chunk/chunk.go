// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chunk executes one unit of parallel work: open the source,
// take the task's page range, run the transformation chain, persist the
// artifact. Every failure is folded into the returned result so nothing
// escapes to kill the worker pool.
package chunk

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pageforge/internal/pdf"
	"github.com/pdiddy/pageforge/internal/transform"
	"github.com/pdiddy/pageforge/pkg/types"
)

// Process runs task to completion and reports the outcome. On success
// the artifact exists at task.Output; on failure the result carries the
// cause and no artifact is guaranteed.
func Process(ctx context.Context, codec pdf.Codec, task types.ChunkTask, log zerolog.Logger) (res types.ChunkResult) {
	start := time.Now()
	res = types.ChunkResult{ID: task.ID, Range: task.Range}

	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Sprintf("panic while processing chunk: %v", r)
		}
		res.Duration = time.Since(start)
		log.Debug().
			Int("chunk", task.ID).
			Stringer("range", task.Range).
			Dur("took", res.Duration).
			Bool("failed", res.Failed()).
			Msg("chunk finished")
	}()

	log.Debug().
		Int("chunk", task.ID).
		Stringer("range", task.Range).
		Int("steps", len(task.Chain)).
		Msg("chunk started")

	doc, err := codec.Open(task.Source)
	if err != nil {
		res.Error = fmt.Sprintf("opening source: %v", err)
		return res
	}

	chain, err := transform.NewChain(codec, task.Chain)
	if err != nil {
		res.Error = fmt.Sprintf("building chain: %v", err)
		return res
	}

	data, pages, err := chain.Run(ctx, doc, task.Range)
	if err != nil {
		res.Error = fmt.Sprintf("transforming %s: %v", task.Range, err)
		return res
	}

	if err := os.WriteFile(task.Output, data, 0o644); err != nil {
		res.Error = fmt.Sprintf("writing artifact: %v", err)
		return res
	}

	res.Artifact = task.Output
	res.Pages = pages
	return res
}
