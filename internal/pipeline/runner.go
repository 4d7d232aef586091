// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pageforge/internal/chunk"
	"github.com/pdiddy/pageforge/internal/pdf"
	"github.com/pdiddy/pageforge/pkg/types"
)

// Runner executes one chunk task and reports its result. It is the
// isolation boundary of the pool: the process runner executes tasks in
// child processes, the in-process runner on the calling goroutine.
// Implementations must contain every failure in the returned result.
type Runner interface {
	Run(ctx context.Context, task types.ChunkTask) types.ChunkResult
}

// InProcessRunner runs chunks inside the orchestrator process. Used by
// tests and the isolation=off mode.
type InProcessRunner struct {
	Codec pdf.Codec
	Log   zerolog.Logger
}

func (r *InProcessRunner) Run(ctx context.Context, task types.ChunkTask) types.ChunkResult {
	return chunk.Process(ctx, r.Codec, task, r.Log)
}

// executor abstracts child process execution for testing.
type executor interface {
	run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

// osExecutor re-executes the current binary.
type osExecutor struct{}

func (osExecutor) run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating own binary: %w", err)
	}
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// ProcessRunner runs every chunk in its own child process by invoking
// the binary's hidden worker subcommand: the task travels as JSON on
// stdin, the result comes back as JSON on stdout. A crash, a kill, or a
// broken protocol is synthesized into a failure result carrying the
// tail of the child's stderr, so one bad chunk cannot take the pool
// down with it.
type ProcessRunner struct {
	Log  zerolog.Logger
	exec executor
}

// NewProcessRunner returns the production process runner.
func NewProcessRunner(log zerolog.Logger) *ProcessRunner {
	return &ProcessRunner{Log: log, exec: osExecutor{}}
}

const workerCommand = "worker"

func (r *ProcessRunner) Run(ctx context.Context, task types.ChunkTask) types.ChunkResult {
	fail := func(format string, args ...any) types.ChunkResult {
		return types.ChunkResult{ID: task.ID, Range: task.Range, Error: fmt.Sprintf(format, args...)}
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fail("encoding task: %v", err)
	}

	var stdout, stderr bytes.Buffer
	runErr := r.exec.run(ctx, []string{workerCommand}, bytes.NewReader(payload), &stdout, &stderr)

	r.Log.Debug().
		Int("chunk", task.ID).
		Int("stdout_bytes", stdout.Len()).
		Int("stderr_bytes", stderr.Len()).
		Msg("worker process finished")

	if runErr != nil {
		return fail("worker process: %v%s", runErr, stderrTail(&stderr))
	}

	var res types.ChunkResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return fail("decoding worker result: %v%s", err, stderrTail(&stderr))
	}
	if res.ID != task.ID {
		return fail("worker returned result for chunk %d, expected %d", res.ID, task.ID)
	}
	return res
}

// stderrTail renders the last lines of a worker's stderr for failure
// messages.
func stderrTail(buf *bytes.Buffer) string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return "; stderr: " + strings.Join(lines, " | ")
}
