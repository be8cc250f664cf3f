package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectIDs(t *testing.T) {
	t.Parallel()

	t.Run("args only", func(t *testing.T) {
		t.Parallel()
		ids, err := collectIDs([]string{"a", "b", "a", " "}, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)
	})

	t.Run("file merged after args", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "ids.txt")
		require.NoError(t, os.WriteFile(path, []byte("b\nc\n\n  d  \n"), 0o644))

		ids, err := collectIDs([]string{"a", "b"}, path)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := collectIDs(nil, filepath.Join(t.TempDir(), "nope.txt"))
		require.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		ids, err := collectIDs(nil, "")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}
