// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pageforge/internal/chunk"
	"github.com/pdiddy/pageforge/internal/pdf"
	"github.com/pdiddy/pageforge/pkg/types"
)

// workerCmd is the child-process side of worker isolation: the parent
// re-executes its own binary with this subcommand, writes one chunk task
// as JSON to stdin, and reads one chunk result as JSON from stdout.
// Diagnostics go to stderr so they never corrupt the result stream.
//
// Chunk failures are data, not process errors: the worker reports them
// inside the result and still exits zero. A non-zero exit means the
// protocol itself broke (or the process crashed mid-chunk).
var workerCmd = &cobra.Command{
	Use:    "worker",
	Hidden: true,
	Short:  "Process one chunk task from stdin (internal)",
	Args:   cobra.NoArgs,
	RunE:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	var task types.ChunkTask
	if err := json.NewDecoder(cmd.InOrStdin()).Decode(&task); err != nil {
		return fmt.Errorf("decoding chunk task: %w", err)
	}

	log := newLogger()
	result := chunk.Process(cmd.Context(), pdf.NewEngine(), task, log)

	if err := json.NewEncoder(cmd.OutOrStdout()).Encode(result); err != nil {
		return fmt.Errorf("encoding chunk result: %w", err)
	}
	return nil
}
