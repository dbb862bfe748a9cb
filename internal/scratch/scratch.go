// Package scratch manages the per-batch working directories that the
// Unpack Worker stages archives and clips into before upload.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir is the per-batch scratch working directory, created under a shared
// root and removed as a single unit once a batch finalizes.
type Dir struct {
	root    string
	batchID string
}

// New creates the scratch directory for batchID under root. A batch_id
// collision (the directory already exists) is a distinct, reported error
// rather than a silent reuse: two unpack jobs for the same batch_id must
// not share scratch.
func New(root, batchID string) (*Dir, error) {
	d := &Dir{root: root, batchID: batchID}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("scratch: failed to create scratch root: %w", err)
	}
	if err := os.Mkdir(d.Path(), 0o755); err != nil {
		return nil, fmt.Errorf("scratch: failed to create batch directory: %w", err)
	}
	return d, nil
}

// Path returns the absolute path of the batch's scratch directory.
func (d *Dir) Path() string {
	return filepath.Join(d.root, d.batchID)
}

// Join joins name onto the batch's scratch directory.
func (d *Dir) Join(name string) string {
	return filepath.Join(d.Path(), name)
}

// Remove deletes the entire scratch directory for this batch. It is safe
// to call more than once; a missing directory is not an error.
func (d *Dir) Remove() error {
	if err := os.RemoveAll(d.Path()); err != nil {
		return fmt.Errorf("scratch: failed to remove batch directory: %w", err)
	}
	return nil
}

// Remove deletes the scratch directory for batchID under root without
// first materialising a Dir (and thus without recreating it). Used by the
// GPU worker's finaliser, which only ever tears scratch down.
func Remove(root, batchID string) error {
	if err := os.RemoveAll(filepath.Join(root, batchID)); err != nil {
		return fmt.Errorf("scratch: failed to remove batch directory: %w", err)
	}
	return nil
}
