// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package papersize holds the registry of standard page sizes, in
// PostScript points, plus a generated landscape variant of each.
package papersize

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pdiddy/pageforge/pkg/types"
)

// ErrUnknownSize reports a lookup for a name the registry does not hold.
var ErrUnknownSize = errors.New("unknown paper size")

// mmPt converts ISO millimetres to PostScript points.
func mmPt(mm float64) float64 { return mm / 25.4 * 72 }

// base holds the portrait sizes. The A series uses the integer point
// dimensions common in PDF tooling; the B and C series derive from
// their ISO 216 millimetre definitions; Letter, Legal and Tabloid are
// the US inch sizes.
var base = map[string][2]float64{
	"A0": {2384, 3370},
	"A1": {1684, 2384},
	"A2": {1191, 1684},
	"A3": {842, 1191},
	"A4": {595, 842},
	"A5": {420, 595},
	"A6": {298, 420},

	"B0": {mmPt(1000), mmPt(1414)},
	"B1": {mmPt(707), mmPt(1000)},
	"B2": {mmPt(500), mmPt(707)},
	"B3": {mmPt(353), mmPt(500)},
	"B4": {mmPt(250), mmPt(353)},
	"B5": {mmPt(176), mmPt(250)},

	"C0": {mmPt(917), mmPt(1297)},
	"C1": {mmPt(648), mmPt(917)},
	"C2": {mmPt(458), mmPt(648)},
	"C3": {mmPt(324), mmPt(458)},
	"C4": {mmPt(229), mmPt(324)},
	"C5": {mmPt(162), mmPt(229)},
	"C6": {mmPt(114), mmPt(162)},

	"Letter":  {612, 792},   // 8.5 x 11 in
	"Legal":   {612, 1008},  // 8.5 x 14 in
	"Tabloid": {792, 1224},  // 11 x 17 in
}

// registry maps every base size plus a "<name>_Landscape" entry with
// the dimensions swapped. Built once at init; read-only afterwards.
var registry = buildRegistry()

func buildRegistry() map[string]types.PaperSize {
	m := make(map[string]types.PaperSize, 2*len(base))
	for name, wh := range base {
		m[name] = types.PaperSize{Name: name, Width: wh[0], Height: wh[1]}
		ln := name + "_Landscape"
		m[ln] = types.PaperSize{Name: ln, Width: wh[1], Height: wh[0]}
	}
	return m
}

// Lookup returns the size registered under name. Matching is exact and
// case-sensitive: "A4" and "A4_Landscape" are distinct entries and
// there is no landscape variant of a landscape name.
func Lookup(name string) (types.PaperSize, error) {
	s, ok := registry[name]
	if !ok {
		return types.PaperSize{}, fmt.Errorf("%w %q (run 'pageforge sizes' for the list)", ErrUnknownSize, name)
	}
	return s, nil
}

// Match returns the name of a registered size with the given dimensions,
// or "" if none comes within half a point on both axes. Portrait names
// win over their landscape variants when both would match.
func Match(w, h float64) string {
	const tol = 0.5
	name := ""
	for _, s := range List() {
		if s.Width-tol < w && w < s.Width+tol && s.Height-tol < h && h < s.Height+tol {
			if name == "" || len(s.Name) < len(name) {
				name = s.Name
			}
		}
	}
	return name
}

// List returns every registered size sorted by name.
func List() []types.PaperSize {
	sizes := make([]types.PaperSize, 0, len(registry))
	for _, s := range registry {
		sizes = append(sizes, s)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i].Name < sizes[j].Name })
	return sizes
}
