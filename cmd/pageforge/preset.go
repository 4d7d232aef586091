// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pageforge/internal/preset"
	"github.com/pdiddy/pageforge/pkg/types"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Create and validate transformation chain presets",
}

var presetInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a commented starter preset",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetInit,
}

var presetCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a preset and print its resolved chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetCheck,
}

func init() {
	presetCmd.AddCommand(presetInitCmd)
	presetCmd.AddCommand(presetCheckCmd)
	rootCmd.AddCommand(presetCmd)
}

func runPresetInit(cmd *cobra.Command, args []string) error {
	if err := preset.Init(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
	return nil
}

func runPresetCheck(cmd *cobra.Command, args []string) error {
	chain, err := preset.Read(args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %d steps\n", args[0], len(chain))
	for i, spec := range chain {
		fmt.Fprintf(w, "  %d. %s\n", i+1, describeSpec(spec))
	}
	return nil
}

func describeSpec(spec types.TransformSpec) string {
	switch spec.Kind {
	case types.KindDuplicate:
		return "duplicate"
	case types.KindAddNoteMargin:
		if spec.Background != "" {
			return fmt.Sprintf("add_note_margin margin=%g background=%s", spec.Margin, spec.Background)
		}
		return fmt.Sprintf("add_note_margin margin=%g", spec.Margin)
	case types.KindMergeSideBySide:
		return fmt.Sprintf("merge_side_by_side merge=%s", spec.Merge)
	case types.KindResize:
		return fmt.Sprintf("resize size=%s", spec.Size)
	default:
		return string(spec.Kind)
	}
}
