// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pageforge/internal/fetch"
	"github.com/pdiddy/pageforge/internal/ledger"
	"github.com/pdiddy/pageforge/internal/pdf"
	"github.com/pdiddy/pageforge/internal/pipeline"
	"github.com/pdiddy/pageforge/internal/preset"
	"github.com/pdiddy/pageforge/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [document]",
	Short: "Transform a document's pages in parallel chunks",
	Long: `Run splits the selected page range of a document into contiguous chunks,
pushes every chunk through the transformation chain in parallel workers,
and merges the finished chunks back in page order.

The chain comes either from a preset file (--preset) or from the
convenience flags, which always compose in a fixed order:
duplicate, note margin, side-by-side merge, resize.

The input may be a local path or an HTTP(S) URL; URLs are downloaded to
scratch space before the run starts.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringP("output", "o", "", "output path (default: <input>_output.pdf)")
	f.Int("start", 0, "first page of the range, zero-based inclusive")
	f.Int("end", 0, "page after the last, zero-based exclusive (default: end of document)")
	f.Int("workers", 0, "parallel chunk workers (default: number of CPUs)")
	f.String("isolation", "", "worker boundary: process or off (default process)")
	f.String("preset", "", "YAML preset file holding the transformation chain")
	f.Bool("duplicate", false, "emit every page twice, consecutively")
	f.Float64("note-margin", 0, "widen pages with a right-hand margin of this proportion [0,1)")
	f.String("background", "", "document whose first page fills the note margin (path or URL)")
	f.String("merge", "", "document placed beside every page on a landscape sheet (path or URL)")
	f.String("resize", "", "scale pages to this paper size (see 'pageforge sizes')")
	f.Bool("append", false, "append the transformed pages to an existing output document")
	f.Bool("compress", false, "optimize the final output document")
	f.String("temp-dir", "", "parent directory for per-run scratch space")
	f.Bool("no-history", false, "do not record this run in the history ledger")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := newLogger()
	w := cmd.OutOrStdout()
	quiet, _ := rootCmd.PersistentFlags().GetBool("quiet")

	chain, err := buildChain(cmd)
	if err != nil {
		return err
	}

	input := args[0]
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = defaultOutput(input)
	}

	// Pull remote references down before the pipeline sees them, so the
	// pipeline and its workers only ever deal in local paths.
	input, chain, cleanup, err := stageRemote(ctx, input, chain)
	if err != nil {
		return err
	}
	defer cleanup()

	workers, _ := cmd.Flags().GetInt("workers")
	if workers == 0 {
		workers = viper.GetInt("run.workers")
	}

	isolation, _ := cmd.Flags().GetString("isolation")
	if isolation == "" {
		isolation = viper.GetString("run.isolation")
	}

	engine := pdf.NewEngine()

	var runner pipeline.Runner
	switch types.Isolation(isolation) {
	case types.IsolationProcess:
		runner = pipeline.NewProcessRunner(log)
	case types.IsolationOff:
		runner = &pipeline.InProcessRunner{Codec: engine, Log: log}
	default:
		return fmt.Errorf("unknown isolation mode %q (want process or off)", isolation)
	}

	start, _ := cmd.Flags().GetInt("start")
	end, _ := cmd.Flags().GetInt("end")
	tempDir, _ := cmd.Flags().GetString("temp-dir")
	if tempDir == "" {
		tempDir = viper.GetString("run.temp_dir")
	}
	appendOut, _ := cmd.Flags().GetBool("append")
	compress, _ := cmd.Flags().GetBool("compress")

	if !quiet {
		printDocLine(w, engine, "input: ", input)
	}

	interactive := isatty.IsTerminal(os.Stderr.Fd())
	var bar *progressbar.ProgressBar
	onDone := func(done, total int) {
		if quiet || !interactive || total < 2 {
			return
		}
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("chunks"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)
		}
		_ = bar.Set(done)
	}

	opts := pipeline.Options{
		Input:       input,
		Output:      output,
		Start:       start,
		End:         end,
		Chain:       chain,
		Workers:     workers,
		TempDir:     tempDir,
		Append:      appendOut,
		Compress:    compress,
		OnChunkDone: onDone,
	}

	report, runErr := pipeline.Run(ctx, engine, runner, opts, log)

	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}

	recordHistory(cmd, report, log)

	for _, c := range report.FailedChunks() {
		fmt.Fprintf(w, "failed:  chunk %d %s: %s\n", c.ID, c.Range, c.Error)
	}

	switch report.Status {
	case types.StatusComplete:
		if !quiet {
			printDocLine(w, engine, "output:", output)
			fmt.Fprintf(w, "done:   %d chunks in %s\n",
				len(report.Chunks), report.Duration().Round(time.Millisecond))
		}
		return nil
	case types.StatusPartial:
		fmt.Fprintf(w, "partial: %d/%d chunks merged, pages %s are incomplete in %s\n",
			report.Succeeded(), len(report.Chunks), report.Range, output)
		exitCode = 2
		return nil
	default:
		return runErr
	}
}

// buildChain resolves the transformation chain from either a preset file
// or the convenience flags. The two are mutually exclusive.
func buildChain(cmd *cobra.Command) ([]types.TransformSpec, error) {
	presetPath, _ := cmd.Flags().GetString("preset")

	duplicate, _ := cmd.Flags().GetBool("duplicate")
	margin, _ := cmd.Flags().GetFloat64("note-margin")
	background, _ := cmd.Flags().GetString("background")
	mergeDoc, _ := cmd.Flags().GetString("merge")
	size, _ := cmd.Flags().GetString("resize")

	wantMargin := cmd.Flags().Changed("note-margin") || background != ""
	hasFlags := duplicate || wantMargin || mergeDoc != "" || size != ""

	if presetPath != "" {
		if hasFlags {
			return nil, fmt.Errorf("--preset cannot be combined with transformation flags")
		}
		return preset.Read(presetPath)
	}

	// Convenience flags compose in a fixed order regardless of the order
	// they were given on the command line.
	var chain []types.TransformSpec
	if duplicate {
		chain = append(chain, types.TransformSpec{Kind: types.KindDuplicate})
	}
	if wantMargin {
		chain = append(chain, types.TransformSpec{
			Kind:       types.KindAddNoteMargin,
			Margin:     margin,
			Background: background,
		})
	}
	if mergeDoc != "" {
		chain = append(chain, types.TransformSpec{Kind: types.KindMergeSideBySide, Merge: mergeDoc})
	}
	if size != "" {
		chain = append(chain, types.TransformSpec{Kind: types.KindResize, Size: size})
	}
	return chain, nil
}

// stageRemote downloads any URL references (the input and chain document
// parameters) into a scratch directory and rewrites them to local paths.
// The returned cleanup removes the scratch directory.
func stageRemote(ctx context.Context, input string, chain []types.TransformSpec) (string, []types.TransformSpec, func(), error) {
	cleanup := func() {}

	refs := []string{input}
	for _, spec := range chain {
		refs = append(refs, spec.Background, spec.Merge)
	}
	remote := false
	for _, ref := range refs {
		if fetch.IsURL(ref) {
			remote = true
			break
		}
	}
	if !remote {
		return input, chain, cleanup, nil
	}

	dir, err := os.MkdirTemp("", "pageforge-stage-")
	if err != nil {
		return "", nil, cleanup, fmt.Errorf("creating staging directory: %w", err)
	}
	cleanup = func() { os.RemoveAll(dir) }

	cfg := types.FetchConfig{
		Timeout:    viper.GetDuration("fetch.timeout"),
		UserAgent:  viper.GetString("fetch.user_agent"),
		MaxRetries: viper.GetInt("fetch.max_retries"),
	}
	client := &http.Client{Timeout: cfg.Timeout}

	staged, err := fetch.Stage(ctx, client, input, dir, cfg)
	if err != nil {
		return "", nil, cleanup, fmt.Errorf("staging input: %w", err)
	}
	for i := range chain {
		if chain[i].Background != "" {
			chain[i].Background, err = fetch.Stage(ctx, client, chain[i].Background, dir, cfg)
			if err != nil {
				return "", nil, cleanup, fmt.Errorf("staging background: %w", err)
			}
		}
		if chain[i].Merge != "" {
			chain[i].Merge, err = fetch.Stage(ctx, client, chain[i].Merge, dir, cfg)
			if err != nil {
				return "", nil, cleanup, fmt.Errorf("staging merge document: %w", err)
			}
		}
	}
	return staged, chain, cleanup, nil
}

// printDocLine prints one status line with a document's page count and
// first-page dimensions, mirroring the original before/after info.
func printDocLine(w io.Writer, engine *pdf.Engine, label, path string) {
	doc, err := engine.Open(path)
	if err != nil {
		fmt.Fprintf(w, "%s %s\n", label, path)
		return
	}
	if p, err := doc.Page(0); err == nil {
		fmt.Fprintf(w, "%s %s (%d pages, first page %.2f x %.2f pt)\n",
			label, path, doc.PageCount(), p.Width(), p.Height())
		return
	}
	fmt.Fprintf(w, "%s %s (%d pages)\n", label, path, doc.PageCount())
}

// defaultOutput derives the output path from the input reference:
// "book.pdf" becomes "book_output.pdf". URL inputs use the URL basename.
func defaultOutput(input string) string {
	base := filepath.Base(input)
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".pdf"
	}
	name := strings.TrimSuffix(base, ext) + "_output" + ext
	if fetch.IsURL(input) {
		return name
	}
	return filepath.Join(filepath.Dir(input), name)
}

// recordHistory persists the run report unless history is disabled. A
// ledger failure degrades to a warning; it never fails the run.
func recordHistory(cmd *cobra.Command, report *types.RunReport, log zerolog.Logger) {
	noHistory, _ := cmd.Flags().GetBool("no-history")
	if noHistory || viper.GetBool("ledger.disabled") {
		return
	}

	store, err := ledger.Open(historyPath())
	if err != nil {
		log.Warn().Err(err).Msg("opening history ledger")
		return
	}
	defer store.Close()

	if err := store.RecordRun(cmd.Context(), report); err != nil {
		log.Warn().Err(err).Msg("recording run history")
	}
}
