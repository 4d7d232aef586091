// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package partition validates a requested page range against a document
// and splits it into contiguous chunks for parallel processing.
package partition

import (
	"errors"
	"fmt"

	"github.com/pdiddy/pageforge/pkg/types"
)

var (
	// ErrInvalidRange reports range bounds that cannot select any pages:
	// a negative start, an end at or before the start, or a start beyond
	// the document.
	ErrInvalidRange = errors.New("invalid page range")

	// ErrEmptyRange reports a range that selects zero pages.
	ErrEmptyRange = errors.New("empty page range")
)

// Partition splits the half-open, zero-based range [start, end) of a
// document with totalPages pages into at most workers contiguous,
// non-overlapping chunks covering the range in page order. Every chunk
// holds ceil(length/workers) pages except possibly the last.
//
// An end beyond the document is clamped to totalPages and reported via
// clamped so callers can surface a warning. All other bound violations
// are errors.
func Partition(totalPages, start, end, workers int) (chunks []types.PageRange, clamped bool, err error) {
	if totalPages <= 0 {
		return nil, false, fmt.Errorf("%w: document has no pages", ErrEmptyRange)
	}
	if start < 0 {
		return nil, false, fmt.Errorf("%w: start page %d is negative", ErrInvalidRange, start)
	}
	if end <= start {
		return nil, false, fmt.Errorf("%w: end page %d is not after start page %d", ErrInvalidRange, end, start)
	}
	if start >= totalPages {
		return nil, false, fmt.Errorf("%w: start page %d is out of bounds, document has %d pages", ErrInvalidRange, start, totalPages)
	}
	if end > totalPages {
		end = totalPages
		clamped = true
	}

	length := end - start
	if length <= 0 {
		return nil, clamped, fmt.Errorf("%w: no pages between %d and %d", ErrEmptyRange, start, end)
	}
	if workers < 1 {
		workers = 1
	}

	size := (length + workers - 1) / workers
	for s := start; s < end; s += size {
		e := s + size
		if e > end {
			e = end
		}
		chunks = append(chunks, types.PageRange{Start: s, End: e})
	}
	return chunks, clamped, nil
}
