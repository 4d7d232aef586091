// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package preset reads and writes chain definition files, so a
// transformation chain can be saved to YAML and reloaded later without
// re-composing command-line flags.
package preset

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pageforge/internal/transform"
	"github.com/pdiddy/pageforge/pkg/types"
)

// File is the on-disk representation of a chain.
type File struct {
	Chain []types.TransformSpec `yaml:"chain"`
}

// Read loads and validates a chain definition. Unknown operations and
// bad parameters fail here, at load time.
func Read(path string) ([]types.TransformSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preset: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing preset %s: %w", path, err)
	}
	if len(f.Chain) == 0 {
		return nil, fmt.Errorf("preset %s defines no chain", path)
	}
	for i, spec := range f.Chain {
		if err := transform.Validate(spec); err != nil {
			return nil, fmt.Errorf("preset %s step %d: %w", path, i+1, err)
		}
	}
	return f.Chain, nil
}

// Write saves a chain definition.
func Write(path string, chain []types.TransformSpec) error {
	data, err := yaml.Marshal(&File{Chain: chain})
	if err != nil {
		return fmt.Errorf("marshaling preset: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// starter is the commented template written by Init.
const starter = `# pageforge chain preset.
# Operations run top to bottom; each step's output feeds the next.
chain:
  # Scale every page to fit a named paper size (see 'pageforge sizes').
  - op: resize
    size: A4

  # Widen every page with a right-hand note margin. margin is the
  # proportion of the final width the margin occupies, in [0, 1).
  # An optional background document's first page fills the margin.
  #- op: add_note_margin
  #  margin: 0.3
  #  background: grid.pdf

  # Emit every page twice, consecutively.
  #- op: duplicate

  # Place every page beside the first page of a second document on an
  # A4 landscape sheet.
  #- op: merge_side_by_side
  #  merge: answers.pdf
`

// Init writes a commented starter preset. It refuses to overwrite an
// existing file.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return os.WriteFile(path, []byte(starter), 0o644)
}
