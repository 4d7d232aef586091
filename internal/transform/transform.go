// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transform implements the four page operations and the chain
// that applies them in order to a page sequence.
//
// A chain is resolved from specs once, at construction time: unknown
// operation kinds and invalid parameters fail before any page work
// starts. Between steps the intermediate document is fully serialized
// and reopened through the codec, because a produced page belongs to the
// builder that created it and cannot feed the next step directly.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/pageforge/internal/papersize"
	"github.com/pdiddy/pageforge/internal/pdf"
	"github.com/pdiddy/pageforge/pkg/types"
)

var (
	// ErrUnknownKind reports a spec with an operation kind the chain
	// does not implement.
	ErrUnknownKind = errors.New("unknown transform")

	// ErrInvalidMargin reports a note-margin proportion outside [0, 1).
	ErrInvalidMargin = errors.New("invalid margin proportion")

	// ErrEmptyBackground reports a background document with no pages.
	ErrEmptyBackground = errors.New("background document has no pages")

	// ErrEmptyMergeSource reports a merge document with no pages.
	ErrEmptyMergeSource = errors.New("merge document has no pages")
)

// Validate checks a spec's parameters without touching any document.
// It is the shared gate for chain construction and preset loading.
func Validate(spec types.TransformSpec) error {
	switch spec.Kind {
	case types.KindDuplicate:
		return nil
	case types.KindAddNoteMargin:
		if spec.Margin < 0 || spec.Margin >= 1 {
			return fmt.Errorf("%w: %g is not in [0, 1)", ErrInvalidMargin, spec.Margin)
		}
		return nil
	case types.KindMergeSideBySide:
		if spec.Merge == "" {
			return fmt.Errorf("%s: merge document path is required", spec.Kind)
		}
		return nil
	case types.KindResize:
		_, err := papersize.Lookup(spec.Size)
		return err
	default:
		return fmt.Errorf("%w %q", ErrUnknownKind, spec.Kind)
	}
}

// step consumes a page sequence and produces the next document as a
// builder. Auxiliary documents are opened on first use, inside the
// worker that runs the step.
type step interface {
	kind() types.TransformKind
	apply(codec pdf.Codec, pages []pdf.Page) (pdf.Builder, error)
}

// Chain is an ordered sequence of resolved steps.
type Chain struct {
	codec pdf.Codec
	steps []step
}

// NewChain resolves specs into a chain. Parameter errors surface here,
// not mid-run.
func NewChain(codec pdf.Codec, specs []types.TransformSpec) (*Chain, error) {
	c := &Chain{codec: codec}
	for i, spec := range specs {
		if err := Validate(spec); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, spec.Kind, err)
		}
		switch spec.Kind {
		case types.KindDuplicate:
			c.steps = append(c.steps, duplicateStep{})
		case types.KindAddNoteMargin:
			c.steps = append(c.steps, &noteMarginStep{margin: spec.Margin, background: spec.Background})
		case types.KindMergeSideBySide:
			c.steps = append(c.steps, &sideBySideStep{mergePath: spec.Merge})
		case types.KindResize:
			size, _ := papersize.Lookup(spec.Size)
			c.steps = append(c.steps, &resizeStep{target: size})
		}
	}
	return c, nil
}

// Steps returns the resolved operation kinds in order.
func (c *Chain) Steps() []types.TransformKind {
	kinds := make([]types.TransformKind, len(c.steps))
	for i, s := range c.steps {
		kinds[i] = s.kind()
	}
	return kinds
}

// Run pushes the pages [r.Start, r.End) of doc through the chain and
// returns the serialized result and its page count. Each step's output
// is materialized and reopened before the next step runs. A chain with
// no steps materializes the selected pages unchanged.
func (c *Chain) Run(ctx context.Context, doc pdf.Document, r types.PageRange) ([]byte, int, error) {
	if r.Start < 0 || r.End > doc.PageCount() || r.Start >= r.End {
		return nil, 0, fmt.Errorf("range %s out of bounds, document has %d pages", r, doc.PageCount())
	}

	pages := make([]pdf.Page, 0, r.Length())
	for i := r.Start; i < r.End; i++ {
		p, err := doc.Page(i)
		if err != nil {
			return nil, 0, err
		}
		pages = append(pages, p)
	}

	data, err := c.materialize(identityStep{}, pages)
	if err != nil {
		return nil, 0, err
	}
	for _, s := range c.steps {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		cur, err := c.codec.OpenBytes(data)
		if err != nil {
			return nil, 0, fmt.Errorf("reopening pages for %s: %w", s.kind(), err)
		}
		pages = pages[:0]
		for i := 0; i < cur.PageCount(); i++ {
			p, err := cur.Page(i)
			if err != nil {
				return nil, 0, err
			}
			pages = append(pages, p)
		}
		if data, err = c.materialize(s, pages); err != nil {
			return nil, 0, err
		}
	}

	out, err := c.codec.OpenBytes(data)
	if err != nil {
		return nil, 0, fmt.Errorf("verifying chain output: %w", err)
	}
	return data, out.PageCount(), nil
}

func (c *Chain) materialize(s step, pages []pdf.Page) ([]byte, error) {
	b, err := s.apply(c.codec, pages)
	if err != nil {
		return nil, fmt.Errorf("applying %s: %w", s.kind(), err)
	}
	data, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serializing %s output: %w", s.kind(), err)
	}
	return data, nil
}

// identityStep copies every page onto a same-sized blank page. It backs
// the initial range extraction and the zero-step chain.
type identityStep struct{}

func (identityStep) kind() types.TransformKind { return "extract" }

func (identityStep) apply(codec pdf.Codec, pages []pdf.Page) (pdf.Builder, error) {
	b := codec.NewBuilder()
	for _, p := range pages {
		dst, err := b.NewBlankPage(p.Width(), p.Height())
		if err != nil {
			return nil, err
		}
		if err := dst.MergeScaledTranslated(p, 1, 0, 0); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// duplicateStep emits every page twice, consecutively.
type duplicateStep struct{}

func (duplicateStep) kind() types.TransformKind { return types.KindDuplicate }

func (duplicateStep) apply(codec pdf.Codec, pages []pdf.Page) (pdf.Builder, error) {
	b := codec.NewBuilder()
	for _, p := range pages {
		for i := 0; i < 2; i++ {
			dst, err := b.NewBlankPage(p.Width(), p.Height())
			if err != nil {
				return nil, err
			}
			if err := dst.MergeScaledTranslated(p, 1, 0, 0); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}

// noteMarginStep widens every page so the original content occupies
// (1-margin) of the new width, leaving a right-hand margin for notes.
// An optional background document's first page fills the margin.
type noteMarginStep struct {
	margin     float64
	background string

	bgPage pdf.Page // first page of the background, opened on first use
}

func (*noteMarginStep) kind() types.TransformKind { return types.KindAddNoteMargin }

func (s *noteMarginStep) apply(codec pdf.Codec, pages []pdf.Page) (pdf.Builder, error) {
	if s.background != "" && s.bgPage == nil {
		doc, err := codec.Open(s.background)
		if err != nil {
			return nil, fmt.Errorf("opening background: %w", err)
		}
		if doc.PageCount() == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyBackground, s.background)
		}
		if s.bgPage, err = doc.Page(0); err != nil {
			return nil, fmt.Errorf("opening background: %w", err)
		}
	}

	b := codec.NewBuilder()
	for _, p := range pages {
		w, h := p.Width(), p.Height()
		idealWidth := w / (1 - s.margin)
		dst, err := b.NewBlankPage(idealWidth, h)
		if err != nil {
			return nil, err
		}
		if err := dst.MergeScaledTranslated(p, 1, 0, 0); err != nil {
			return nil, err
		}
		if s.bgPage != nil {
			// Flush against the right edge of the original content,
			// scaled to the full page height.
			if err := dst.MergeScaledTranslated(s.bgPage, h/s.bgPage.Height(), w, 0); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}

// sideBySideStep places every page on the left half of an A4 landscape
// sheet with the merge document's first page on the right half. The
// same merge page is reused across the whole sequence.
type sideBySideStep struct {
	mergePath string

	mergePage pdf.Page
}

func (*sideBySideStep) kind() types.TransformKind { return types.KindMergeSideBySide }

func (s *sideBySideStep) apply(codec pdf.Codec, pages []pdf.Page) (pdf.Builder, error) {
	if s.mergePage == nil {
		doc, err := codec.Open(s.mergePath)
		if err != nil {
			return nil, fmt.Errorf("opening merge document: %w", err)
		}
		if doc.PageCount() == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyMergeSource, s.mergePath)
		}
		if s.mergePage, err = doc.Page(0); err != nil {
			return nil, fmt.Errorf("opening merge document: %w", err)
		}
	}

	dest, err := papersize.Lookup("A4_Landscape")
	if err != nil {
		return nil, err
	}
	half := dest.Width / 2

	b := codec.NewBuilder()
	for _, p := range pages {
		dst, err := b.NewBlankPage(dest.Width, dest.Height)
		if err != nil {
			return nil, err
		}
		if err := dst.MergeScaledTranslated(p, fitScale(half, dest.Height, p), 0, 0); err != nil {
			return nil, err
		}
		if err := dst.MergeScaledTranslated(s.mergePage, fitScale(half, dest.Height, s.mergePage), half, 0); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// resizeStep scales every page to fit inside the target paper size,
// preserving aspect ratio.
type resizeStep struct {
	target types.PaperSize
}

func (*resizeStep) kind() types.TransformKind { return types.KindResize }

func (s *resizeStep) apply(codec pdf.Codec, pages []pdf.Page) (pdf.Builder, error) {
	b := codec.NewBuilder()
	for _, p := range pages {
		dst, err := b.NewBlankPage(s.target.Width, s.target.Height)
		if err != nil {
			return nil, err
		}
		if err := dst.MergeScaledTranslated(p, fitScale(s.target.Width, s.target.Height, p), 0, 0); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// fitScale returns the uniform scale placing p inside w x h without
// cropping.
func fitScale(w, h float64, p pdf.Page) float64 {
	sw := w / p.Width()
	sh := h / p.Height()
	if sw < sh {
		return sw
	}
	return sh
}
