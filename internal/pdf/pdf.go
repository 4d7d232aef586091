// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdf defines the page codec the transformation pipeline runs
// against, and provides the pdfcpu-backed engine implementing it.
//
// The interfaces draw a hard ownership line: a Page belongs to the
// Document that produced it, and a Builder owns its output pages until
// they are serialized with Bytes or SaveFile. Build pages never serve as
// merge sources; chain steps that need a produced page as input must
// serialize the builder and reopen the bytes as a fresh Document.
package pdf

import "errors"

var (
	// ErrNotFound reports that a document path does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrCorrupt reports a document the engine could not parse.
	ErrCorrupt = errors.New("corrupt document")
)

// Codec opens documents and builds new ones.
type Codec interface {
	// Open reads and parses the document at path.
	Open(path string) (Document, error)

	// OpenBytes parses an in-memory document.
	OpenBytes(data []byte) (Document, error)

	// NewBuilder starts an empty output document.
	NewBuilder() Builder

	// MergeFiles concatenates the pages of the given documents, in
	// order, into a new document at out. The merge is lossless: page
	// content is carried over untouched.
	MergeFiles(paths []string, out string) error

	// PageCount reports the number of pages of the document at path
	// without retaining it.
	PageCount(path string) (int, error)

	// Optimize rewrites the document at path in place, compacting its
	// object graph and compressing streams.
	Optimize(path string) error
}

// Document is a parsed, read-only document.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int

	// Page returns the zero-based i-th page.
	Page(i int) (Page, error)
}

// Page exposes the display geometry of one page. Dimensions are in
// PostScript points and reflect the page's display orientation: a
// rotated page reports swapped width and height.
type Page interface {
	Width() float64
	Height() float64
}

// Builder assembles an output document from blank pages and placements.
type Builder interface {
	// NewBlankPage appends a blank page of the given dimensions to the
	// output and returns it for compositing.
	NewBlankPage(w, h float64) (BuildPage, error)

	// Bytes serializes the output document.
	Bytes() ([]byte, error)

	// SaveFile serializes the output document to path.
	SaveFile(path string) error
}

// BuildPage is an output page under construction.
type BuildPage interface {
	Page

	// MergeScaledTranslated composites src onto the page under the
	// affine transform "scale uniformly about the origin, then
	// translate by (dx, dy)". src must be a page of a document opened
	// by the same codec.
	MergeScaledTranslated(src Page, scale, dx, dy float64) error
}
