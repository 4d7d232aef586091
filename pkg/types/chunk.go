// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// TransformKind names one of the page operations.
type TransformKind string

const (
	// KindDuplicate emits every page twice, consecutively.
	KindDuplicate TransformKind = "duplicate"
	// KindAddNoteMargin widens every page with a blank right-hand
	// margin, optionally filled from a background document.
	KindAddNoteMargin TransformKind = "add_note_margin"
	// KindMergeSideBySide places every page beside the first page of a
	// second document on an A4 landscape sheet.
	KindMergeSideBySide TransformKind = "merge_side_by_side"
	// KindResize scales every page to fit a named paper size.
	KindResize TransformKind = "resize"
)

// TransformSpec is one step of a transformation chain. Kind selects the
// operation and the remaining fields are that operation's parameters;
// fields irrelevant to the kind stay zero. Specs are plain data so they
// can ride to worker processes as JSON and live in preset files as YAML.
type TransformSpec struct {
	Kind TransformKind `json:"kind" yaml:"op"`

	// Margin is the note-margin proportion of the final page width,
	// in [0, 1). Used by add_note_margin.
	Margin float64 `json:"margin,omitempty" yaml:"margin,omitempty"`

	// Background names an optional document whose first page fills the
	// added margin. Used by add_note_margin.
	Background string `json:"background,omitempty" yaml:"background,omitempty"`

	// Merge names the document whose first page is placed beside every
	// input page. Used by merge_side_by_side.
	Merge string `json:"merge,omitempty" yaml:"merge,omitempty"`

	// Size is a paper-size name from the registry. Used by resize.
	Size string `json:"size,omitempty" yaml:"size,omitempty"`
}

// ChunkTask describes one unit of parallel work: a contiguous page range
// of the source document, the chain to push it through, and the path the
// finished artifact should land at.
type ChunkTask struct {
	ID     int             `json:"id"`
	Source string          `json:"source"`
	Range  PageRange       `json:"range"`
	Chain  []TransformSpec `json:"chain,omitempty"`
	Output string          `json:"output"`
}

// ChunkResult reports one chunk's outcome. IDs are assigned in page
// order at dispatch, so sorting results by ID restores the original
// page order no matter how workers interleaved.
type ChunkResult struct {
	ID       int           `json:"id"`
	Range    PageRange     `json:"range"`
	Artifact string        `json:"artifact,omitempty"`
	Pages    int           `json:"pages,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Failed reports whether the chunk ended in failure.
func (r ChunkResult) Failed() bool { return r.Error != "" }
