package drive

import (
	"bytes"
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewURL(t *testing.T) {
	assert.Equal(t, "https://drive.google.com/file/d/abc123/view?usp=sharing", ViewURL("abc123"))
}

func TestFindFileQuery(t *testing.T) {
	query := FindFileQuery("folder-1", "TAG-3.mp4")
	assert.Equal(t,
		"'folder-1' in parents and name = 'TAG-3.mp4' and mimeType != 'application/vnd.google-apps.folder' and trashed = false",
		query)
}

func TestEscapeQueryValue(t *testing.T) {
	assert.Equal(t, `it\'s`, EscapeQueryValue("it's"))
	assert.Equal(t, `a\\b`, EscapeQueryValue(`a\b`))
	assert.Equal(t, `x\\\'`, EscapeQueryValue(`x\'`))
}

func TestMemoryStoreUploadOrReplaceIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	folder, err := store.CreateFolder(ctx, "EV-2024-0001")
	require.NoError(t, err)

	first, err := store.UploadOrReplace(ctx, UploadRequest{
		FolderID: folder.ID,
		FileName: "TAG-1.mp4",
		Content:  bytes.NewReader([]byte("first")),
	})
	require.NoError(t, err)
	assert.Equal(t, UploadModeCreated, first.Mode)

	second, err := store.UploadOrReplace(ctx, UploadRequest{
		FolderID: folder.ID,
		FileName: "TAG-1.mp4",
		Content:  bytes.NewReader([]byte("second")),
	})
	require.NoError(t, err)
	assert.Equal(t, UploadModeReplaced, second.Mode)
	assert.Equal(t, first.FileID, second.FileID)

	content, ok := store.Content(first.FileID)
	require.True(t, ok)
	assert.Equal(t, "second", string(content))
	assert.Equal(t, 2, store.Writes())
}

func TestMemoryStoreSeparatesFolders(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.UploadOrReplace(ctx, UploadRequest{FolderID: "a", FileName: "TAG-1.mp4", Content: bytes.NewReader(nil)})
	require.NoError(t, err)
	second, err := store.UploadOrReplace(ctx, UploadRequest{FolderID: "b", FileName: "TAG-1.mp4", Content: bytes.NewReader(nil)})
	require.NoError(t, err)
	assert.NotEqual(t, first.FileID, second.FileID)

	found, err := store.FindFileByName(ctx, "a", "TAG-1.mp4")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.FileID, found.ID)
	assert.Equal(t, DefaultMimeType, found.MimeType)
}

func TestMemoryStoreReplaceContent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	created, err := store.UploadOrReplace(ctx, UploadRequest{FolderID: "a", FileName: "TAG-1.mp4", Content: bytes.NewReader([]byte("v1"))})
	require.NoError(t, err)

	replaced, err := store.ReplaceContent(ctx, created.FileID, bytes.NewReader([]byte("v2")), "video/webm")
	require.NoError(t, err)
	assert.Equal(t, created.FileID, replaced.FileID)
	assert.Equal(t, UploadModeReplaced, replaced.Mode)

	_, err = store.ReplaceContent(ctx, "unknown", bytes.NewReader(nil), "")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestOAuthHelperConsentURL(t *testing.T) {
	helper := NewOAuthHelper(NewOAuthConfig("client-id", "secret", "https://vinculo.example.com/api/google/callback"))

	consent, err := url.Parse(helper.ConsentURL("state-1"))
	require.NoError(t, err)
	query := consent.Query()
	assert.Equal(t, "offline", query.Get("access_type"))
	assert.Equal(t, "consent", query.Get("prompt"))
	assert.Equal(t, "https://www.googleapis.com/auth/drive", query.Get("scope"))
	assert.Equal(t, "state-1", query.Get("state"))

	_, err = helper.Exchange(context.Background(), "")
	assert.Error(t, err)
}
