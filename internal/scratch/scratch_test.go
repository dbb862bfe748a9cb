package scratch

import (
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir_CreateAndRemove(t *testing.T) {
	root := t.TempDir()

	d, err := New(root, "batch-123")
	require.NoError(t, err)

	_, err = os.Stat(d.Path())
	assert.NoError(t, err)

	assert.NoError(t, d.Remove())
	_, err = os.Stat(d.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestDir_RemoveIsIdempotent(t *testing.T) {
	root := t.TempDir()
	d, err := New(root, "batch-456")
	require.NoError(t, err)

	require.NoError(t, d.Remove())
	assert.NoError(t, d.Remove())
}

func TestDir_New_RejectsBatchIDCollision(t *testing.T) {
	root := t.TempDir()

	_, err := New(root, "batch-789")
	require.NoError(t, err)

	_, err = New(root, "batch-789")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrExist))
}

func TestDir_Join(t *testing.T) {
	d := &Dir{root: "/data/scratch", batchID: "batch-1"}
	assert.Equal(t, "/data/scratch/batch-1/clip.opus", d.Join("clip.opus"))
}
