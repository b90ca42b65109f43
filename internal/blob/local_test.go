package blob

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "staging"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "ABC123/clip.mp4", bytes.NewReader([]byte("video bytes"))))

	reader, err := store.Get(ctx, "ABC123/clip.mp4")
	require.NoError(t, err)
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, "video bytes", string(content))

	require.NoError(t, store.Delete(ctx, "ABC123/clip.mp4"))
	_, err = os.Stat(filepath.Join(store.RootDir(), "ABC123", "clip.mp4"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorePutOverwrites(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "clip.mp4", bytes.NewReader([]byte("first"))))
	require.NoError(t, store.Put(ctx, "clip.mp4", bytes.NewReader([]byte("second"))))

	reader, err := store.Get(ctx, "clip.mp4")
	require.NoError(t, err)
	defer reader.Close()
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestLocalStoreGetMissingObject(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "missing.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreDeleteMissingObject(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete(context.Background(), "missing.mp4"))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	assert.ErrorIs(t, store.Put(ctx, "../escape.mp4", bytes.NewReader(nil)), ErrInvalidPath)
	_, err = store.Get(ctx, "a/../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, store.Delete(ctx, "  "), ErrInvalidPath)
}

func TestLocalStoreRespectsCancellation(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = store.Put(ctx, "clip.mp4", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanPath(t *testing.T) {
	testCases := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "code/file.mp4", want: "code/file.mp4"},
		{input: "/code//file.mp4", want: "code/file.mp4"},
		{input: "", wantErr: true},
		{input: "/", wantErr: true},
		{input: "../x", wantErr: true},
	}
	for _, testCase := range testCases {
		got, err := CleanPath(testCase.input)
		if testCase.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPath, testCase.input)
			continue
		}
		require.NoError(t, err, testCase.input)
		assert.Equal(t, testCase.want, got)
	}
}
