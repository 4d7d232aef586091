// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Engine is the pdfcpu-backed Codec.
//
// Opened documents keep their raw bytes alongside the parsed context, so
// a builder can pool every referenced document into one context when it
// serializes. Pages carry their 1-based context page number and their
// display dimensions (media box, swapped under 90/270 rotation).
type Engine struct{}

var configDirOnce sync.Once

// NewEngine returns the production codec.
func NewEngine() *Engine {
	// Keep pdfcpu from writing a config directory on first use.
	configDirOnce.Do(api.DisableConfigDir)
	return &Engine{}
}

func (e *Engine) conf() *model.Configuration {
	return model.NewDefaultConfiguration()
}

// Open reads and parses the document at path.
func (e *Engine) Open(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := e.OpenBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// OpenBytes parses an in-memory document.
func (e *Engine) OpenBytes(data []byte) (Document, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), e.conf())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &document{data: data, ctx: ctx}, nil
}

// MergeFiles concatenates the documents at paths into out, page content
// untouched.
func (e *Engine) MergeFiles(paths []string, out string) error {
	if len(paths) == 0 {
		return fmt.Errorf("merging documents: no input files")
	}
	if err := api.MergeCreateFile(paths, out, false, e.conf()); err != nil {
		return fmt.Errorf("merging %d documents into %s: %w", len(paths), out, err)
	}
	return nil
}

// PageCount reports the page count of the document at path.
func (e *Engine) PageCount(path string) (int, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %v", path, ErrCorrupt, err)
	}
	return n, nil
}

// Optimize rewrites the document at path in place.
func (e *Engine) Optimize(path string) error {
	if err := api.OptimizeFile(path, "", e.conf()); err != nil {
		return fmt.Errorf("optimizing %s: %w", path, err)
	}
	return nil
}

type document struct {
	data []byte
	ctx  *model.Context
}

func (d *document) PageCount() int { return d.ctx.PageCount }

func (d *document) Page(i int) (Page, error) {
	if i < 0 || i >= d.ctx.PageCount {
		return nil, fmt.Errorf("page %d out of bounds, document has %d pages", i, d.ctx.PageCount)
	}
	_, _, inh, err := d.ctx.PageDict(i+1, false)
	if err != nil {
		return nil, fmt.Errorf("reading page %d: %w", i, err)
	}
	box := inh.MediaBox
	if box == nil {
		box = inh.CropBox
	}
	if box == nil {
		return nil, fmt.Errorf("page %d has no media box", i)
	}
	w, h := box.Width(), box.Height()
	rot := ((inh.Rotate % 360) + 360) % 360
	if rot == 90 || rot == 270 {
		w, h = h, w
	}
	return &page{doc: d, nr: i + 1, width: w, height: h, rotate: rot}, nil
}

type page struct {
	doc           *document
	nr            int // 1-based context page number
	width, height float64
	rotate        int
}

func (p *page) Width() float64  { return p.width }
func (p *page) Height() float64 { return p.height }

// NewBuilder starts an empty output document.
func (e *Engine) NewBuilder() Builder {
	return &builder{e: e}
}

type placement struct {
	src           *page
	scale, dx, dy float64
}

type builder struct {
	e     *Engine
	pages []*buildPage
}

type buildPage struct {
	width, height float64
	placements    []placement
}

func (bp *buildPage) Width() float64  { return bp.width }
func (bp *buildPage) Height() float64 { return bp.height }

func (bp *buildPage) MergeScaledTranslated(src Page, scale, dx, dy float64) error {
	sp, ok := src.(*page)
	if !ok {
		return errors.New("merge source must be a page of an opened document, not an output page")
	}
	if scale <= 0 {
		return fmt.Errorf("merge scale must be positive, got %g", scale)
	}
	bp.placements = append(bp.placements, placement{src: sp, scale: scale, dx: dx, dy: dy})
	return nil
}

func (b *builder) NewBlankPage(w, h float64) (BuildPage, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("blank page dimensions must be positive, got %.2f x %.2f", w, h)
	}
	bp := &buildPage{width: w, height: h}
	b.pages = append(b.pages, bp)
	return bp, nil
}

// SaveFile serializes the output document to path.
func (b *builder) SaveFile(path string) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Bytes serializes the output document.
//
// All referenced source documents are merged into one context so their
// objects share an object pool. Every referenced source page is then
// snapshotted exactly once as a form XObject (content, resources,
// bounding box, rotation folded in), the first len(pages) base pages of
// the merged context are rewritten into the output pages, and those
// pages are extracted into a fresh context and written out.
func (b *builder) Bytes() ([]byte, error) {
	if len(b.pages) == 0 {
		return nil, errors.New("output document has no pages")
	}

	// Referenced source documents in first-use order, with their page
	// offsets inside the merged context.
	var docs []*document
	offsets := make(map[*document]int)
	total := 0
	for _, bp := range b.pages {
		for _, pl := range bp.placements {
			if _, ok := offsets[pl.src.doc]; !ok {
				offsets[pl.src.doc] = total
				docs = append(docs, pl.src.doc)
				total += pl.src.doc.ctx.PageCount
			}
		}
	}

	// The merged context must hold at least as many pages as the
	// output; pad with blank single-page documents. Padding page dicts
	// are rewritten below like any other base page.
	readers := make([]io.ReadSeeker, 0, len(docs)+1)
	for _, d := range docs {
		readers = append(readers, bytes.NewReader(d.data))
	}
	pad := blankPDF(595, 842)
	for total < len(b.pages) {
		readers = append(readers, bytes.NewReader(pad))
		total++
	}

	conf := b.e.conf()
	var mctx *model.Context
	var err error
	if len(readers) == 1 {
		mctx, err = api.ReadValidateAndOptimize(readers[0], conf)
	} else {
		var merged bytes.Buffer
		if err := api.MergeRaw(readers, &merged, false, conf); err != nil {
			return nil, fmt.Errorf("pooling source documents: %w", err)
		}
		mctx, err = api.ReadValidateAndOptimize(bytes.NewReader(merged.Bytes()), conf)
	}
	if err != nil {
		return nil, fmt.Errorf("reading pooled documents: %w", err)
	}
	if err := mctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("reading pooled documents: %w", err)
	}

	// Snapshot sources before any base page is rewritten.
	type srcKey struct {
		doc *document
		nr  int
	}
	xobjs := make(map[srcKey]*pdftypes.IndirectRef)
	for _, bp := range b.pages {
		for _, pl := range bp.placements {
			k := srcKey{pl.src.doc, pl.src.nr}
			if _, ok := xobjs[k]; ok {
				continue
			}
			ir, err := snapshotPage(mctx, offsets[pl.src.doc]+pl.src.nr, pl.src)
			if err != nil {
				return nil, fmt.Errorf("snapshotting source page %d: %w", pl.src.nr, err)
			}
			xobjs[k] = ir
		}
	}

	for i, bp := range b.pages {
		pageDict, _, _, err := mctx.PageDict(i+1, false)
		if err != nil {
			return nil, fmt.Errorf("rewriting output page %d: %w", i+1, err)
		}

		box := pdftypes.RectForWidthAndHeight(0, 0, bp.width, bp.height)
		pageDict["MediaBox"] = box.Array()
		pageDict["CropBox"] = box.Array()
		pageDict["Rotate"] = pdftypes.Integer(0)
		pageDict.Delete("Annots")

		xd := pdftypes.Dict{}
		var content bytes.Buffer
		for j, pl := range bp.placements {
			name := fmt.Sprintf("Fm%d", j)
			xd[name] = *xobjs[srcKey{pl.src.doc, pl.src.nr}]
			fmt.Fprintf(&content, "q %.5f 0 0 %.5f %.5f %.5f cm /%s Do Q ",
				pl.scale, pl.scale, pl.dx, pl.dy, name)
		}
		pageDict["Resources"] = pdftypes.Dict{"XObject": xd}

		sd, err := mctx.NewStreamDictForBuf(content.Bytes())
		if err != nil {
			return nil, fmt.Errorf("rewriting output page %d: %w", i+1, err)
		}
		if err := sd.Encode(); err != nil {
			return nil, fmt.Errorf("rewriting output page %d: %w", i+1, err)
		}
		ir, err := mctx.IndRefForNewObject(*sd)
		if err != nil {
			return nil, fmt.Errorf("rewriting output page %d: %w", i+1, err)
		}
		pageDict["Contents"] = *ir
	}

	nrs := make([]int, len(b.pages))
	for i := range nrs {
		nrs[i] = i + 1
	}
	outCtx, err := pdfcpu.ExtractPages(mctx, nrs, false)
	if err != nil {
		return nil, fmt.Errorf("extracting output pages: %w", err)
	}
	var out bytes.Buffer
	if err := api.WriteContext(outCtx, &out); err != nil {
		return nil, fmt.Errorf("serializing output document: %w", err)
	}
	return out.Bytes(), nil
}

// snapshotPage wraps the merged context's page pageNr into a form
// XObject. The page origin is normalized to (0,0) and any /Rotate is
// folded into the content, so the XObject renders in display
// orientation inside [0,0,width,height].
func snapshotPage(ctx *model.Context, pageNr int, sp *page) (*pdftypes.IndirectRef, error) {
	pageDict, _, inh, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return nil, err
	}
	box := inh.MediaBox
	if box == nil {
		box = inh.CropBox
	}
	if box == nil {
		return nil, fmt.Errorf("page %d has no media box", pageNr)
	}

	content, err := ctx.PageContent(pageDict)
	if err != nil && !errors.Is(err, model.ErrNoContent) {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("q ")
	if sp.rotate != 0 {
		buf.Write(model.ContentBytesForPageRotation(sp.rotate, box.Width(), box.Height()))
	}
	fmt.Fprintf(&buf, "1 0 0 1 %.5f %.5f cm ", -box.LL.X, -box.LL.Y)
	buf.Write(content)
	buf.WriteString(" Q ")

	sd, err := ctx.NewStreamDictForBuf(buf.Bytes())
	if err != nil {
		return nil, err
	}
	sd.Dict["Type"] = pdftypes.Name("XObject")
	sd.Dict["Subtype"] = pdftypes.Name("Form")
	sd.Dict["BBox"] = pdftypes.RectForWidthAndHeight(0, 0, sp.width, sp.height).Array()
	if inh.Resources != nil {
		sd.Dict["Resources"] = inh.Resources
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return ctx.IndRefForNewObject(*sd)
}

// blankPDF renders a minimal single-page document of the given size.
// The xref offsets are computed while writing, so the result is valid
// for any dimensions.
func blankPDF(w, h float64) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n")
	offsets := make([]int, 4)
	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	offsets[3] = b.Len()
	fmt.Fprintf(&b, "3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.2f %.2f] >>\nendobj\n", w, h)
	start := b.Len()
	b.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", start)
	return b.Bytes()
}
