// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data shared across pageforge stages: page
// geometry, transformation specs, chunk tasks and results, and the
// per-concern configuration blocks.
package types

import "fmt"

// PageRange selects a contiguous run of pages. It is half-open and
// zero-based: [Start, End) in the page order of the source document.
type PageRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Length returns the number of pages the range selects.
func (r PageRange) Length() int { return r.End - r.Start }

// String renders the range in half-open notation, e.g. "[0,12)".
func (r PageRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// PaperSize is a named page size. Width and Height are in PostScript
// points (1/72 inch).
type PaperSize struct {
	Name   string  `json:"name" yaml:"name"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Landscape reports whether the size is wider than it is tall.
func (p PaperSize) Landscape() bool { return p.Width > p.Height }
