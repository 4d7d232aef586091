// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pageforge/internal/papersize"
	"github.com/pdiddy/pageforge/internal/pdf"
)

var infoCmd = &cobra.Command{
	Use:   "info [document]",
	Short: "Show page count and page geometry of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	engine := pdf.NewEngine()

	doc, err := engine.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening document: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "document: %s\n", args[0])
	fmt.Fprintf(w, "pages:    %d\n", doc.PageCount())

	// Group consecutive pages by display size so a uniform document
	// prints one line and a mixed one shows where the size changes.
	type span struct {
		first, last   int
		width, height float64
	}
	var spans []span
	for i := 0; i < doc.PageCount(); i++ {
		page, err := doc.Page(i)
		if err != nil {
			return fmt.Errorf("reading page %d: %w", i, err)
		}
		pw, ph := page.Width(), page.Height()
		if n := len(spans); n > 0 && spans[n-1].width == pw && spans[n-1].height == ph {
			spans[n-1].last = i
			continue
		}
		spans = append(spans, span{first: i, last: i, width: pw, height: ph})
	}
	for _, s := range spans {
		label := ""
		if name := papersize.Match(s.width, s.height); name != "" {
			label = "  (" + name + ")"
		}
		if s.first == s.last {
			fmt.Fprintf(w, "page %d:   %.2f x %.2f pt%s\n", s.first, s.width, s.height, label)
		} else {
			fmt.Fprintf(w, "pages %d-%d: %.2f x %.2f pt%s\n", s.first, s.last, s.width, s.height, label)
		}
	}
	return nil
}
