// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pageforge/internal/papersize"
)

var sizesCmd = &cobra.Command{
	Use:   "sizes",
	Short: "List the paper sizes accepted by resize and merge steps",
	RunE:  runSizes,
}

func init() {
	sizesCmd.Flags().Bool("json", false, "emit the registry as JSON")
	rootCmd.AddCommand(sizesCmd)
}

func runSizes(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	sizes := papersize.List()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sizes)
	}

	fmt.Fprintf(w, "%-20s %10s %10s\n", "NAME", "WIDTH", "HEIGHT")
	for _, s := range sizes {
		fmt.Fprintf(w, "%-20s %10.2f %10.2f\n", s.Name, s.Width, s.Height)
	}
	fmt.Fprintln(w, "\ndimensions in PostScript points (1/72 inch)")
	return nil
}
