// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pageforge/pkg/types"
)

// mockExecutor plays a canned worker process.
type mockExecutor struct {
	stdout  string
	stderr  string
	err     error
	gotTask types.ChunkTask
}

func (m *mockExecutor) run(_ context.Context, _ []string, stdin io.Reader, stdout, stderr io.Writer) error {
	payload, _ := io.ReadAll(stdin)
	json.Unmarshal(payload, &m.gotTask)
	io.WriteString(stdout, m.stdout)
	io.WriteString(stderr, m.stderr)
	return m.err
}

func processRunnerWith(m *mockExecutor) *ProcessRunner {
	return &ProcessRunner{Log: zerolog.Nop(), exec: m}
}

func TestProcessRunnerSuccess(t *testing.T) {
	want := types.ChunkResult{ID: 2, Range: types.PageRange{Start: 4, End: 6}, Artifact: "/tmp/chunk-002.pdf", Pages: 2}
	payload, _ := json.Marshal(want)
	m := &mockExecutor{stdout: string(payload)}

	task := types.ChunkTask{ID: 2, Source: "in.pdf", Range: types.PageRange{Start: 4, End: 6}, Output: "/tmp/chunk-002.pdf"}
	res := processRunnerWith(m).Run(context.Background(), task)

	if res.Failed() {
		t.Fatalf("Run failed: %s", res.Error)
	}
	if res.Artifact != want.Artifact || res.Pages != want.Pages {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if m.gotTask.ID != 2 || m.gotTask.Source != "in.pdf" {
		t.Errorf("worker received task %+v", m.gotTask)
	}
}

func TestProcessRunnerCrash(t *testing.T) {
	m := &mockExecutor{
		err:    errors.New("signal: killed"),
		stderr: "opening source: unexpected EOF\n",
	}
	res := processRunnerWith(m).Run(context.Background(), types.ChunkTask{ID: 1, Range: types.PageRange{Start: 2, End: 4}})

	if !res.Failed() {
		t.Fatal("crash did not produce a failure result")
	}
	if res.ID != 1 {
		t.Errorf("ID = %d, want 1", res.ID)
	}
	if !strings.Contains(res.Error, "signal: killed") || !strings.Contains(res.Error, "unexpected EOF") {
		t.Errorf("Error = %q, want crash cause and stderr tail", res.Error)
	}
}

func TestProcessRunnerBadProtocol(t *testing.T) {
	m := &mockExecutor{stdout: "this is not json"}
	res := processRunnerWith(m).Run(context.Background(), types.ChunkTask{ID: 0})
	if !res.Failed() || !strings.Contains(res.Error, "decoding worker result") {
		t.Errorf("Error = %q, want a protocol failure", res.Error)
	}
}

func TestProcessRunnerWrongChunk(t *testing.T) {
	payload, _ := json.Marshal(types.ChunkResult{ID: 7})
	m := &mockExecutor{stdout: string(payload)}
	res := processRunnerWith(m).Run(context.Background(), types.ChunkTask{ID: 3})
	if !res.Failed() || !strings.Contains(res.Error, "chunk 7") {
		t.Errorf("Error = %q, want an ID mismatch failure", res.Error)
	}
}
