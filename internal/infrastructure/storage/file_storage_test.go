package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalStorage_SaveAndRead(t *testing.T) {
	root := t.TempDir()
	s := NewLocalStorage(root, zap.NewNop())
	ctx := context.Background()

	t.Run("creates nested directories", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "signatures/apr-1/sig-1.png", []byte("png")))
		assert.FileExists(t, filepath.Join(root, "signatures", "apr-1", "sig-1.png"))

		got, err := s.Read(ctx, "signatures/apr-1/sig-1.png")
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), got)
		assert.True(t, s.Exists(ctx, "signatures/apr-1/sig-1.png"))
	})

	t.Run("overwrites and leaves no temp files", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "documents/O1/ev-1.pdf", []byte("first")))
		require.NoError(t, s.Save(ctx, "documents/O1/ev-1.pdf", []byte("second")))

		got, err := s.Read(ctx, "documents/O1/ev-1.pdf")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got)

		entries, err := os.ReadDir(filepath.Join(root, "documents", "O1"))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("read of missing file", func(t *testing.T) {
		_, err := s.Read(ctx, "documents/none.pdf")
		assert.ErrorIs(t, err, ErrFileNotFound)
		assert.False(t, s.Exists(ctx, "documents/none.pdf"))
	})
}

func TestLocalStorage_RejectsEscapingPaths(t *testing.T) {
	s := NewLocalStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	for _, path := range []string{"", "../outside.txt", "signatures/../../outside.txt", "/etc/passwd", "."} {
		t.Run(path, func(t *testing.T) {
			assert.ErrorIs(t, s.Save(ctx, path, []byte("x")), ErrPathEscapesRoot)
			_, err := s.Read(ctx, path)
			assert.ErrorIs(t, err, ErrPathEscapesRoot)
			assert.ErrorIs(t, s.Delete(ctx, path), ErrPathEscapesRoot)
			assert.False(t, s.Exists(ctx, path))
		})
	}
}

func TestLocalStorage_Delete(t *testing.T) {
	s := NewLocalStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "signatures/a.png", []byte("x")))
	require.NoError(t, s.Delete(ctx, "signatures/a.png"))
	assert.False(t, s.Exists(ctx, "signatures/a.png"))

	// Idempotent
	assert.NoError(t, s.Delete(ctx, "signatures/a.png"))
}
