// Package drive adapts the external file store that holds event folders and group videos.
package drive

import (
	"context"
	"errors"
	"io"
	"strings"
)

const (
	// DefaultMimeType is used when an upload does not declare a content type.
	DefaultMimeType = "video/mp4"
	// FolderMimeType marks folder entries in the Drive namespace.
	FolderMimeType = "application/vnd.google-apps.folder"

	viewURLPrefix = "https://drive.google.com/file/d/"
	viewURLSuffix = "/view?usp=sharing"
)

// UploadMode reports whether an upload created a file or overwrote an existing one.
type UploadMode string

const (
	// UploadModeCreated marks a newly created file.
	UploadModeCreated UploadMode = "created"
	// UploadModeReplaced marks an in-place content overwrite preserving the file id.
	UploadModeReplaced UploadMode = "replaced"
)

var (
	// ErrMissingFolder reports an empty folder reference.
	ErrMissingFolder = errors.New("drive: folder id is required")
	// ErrMissingFile reports an empty file name or file id.
	ErrMissingFile = errors.New("drive: file reference is required")
	// ErrFileNotFound reports a replace against an unknown file id.
	ErrFileNotFound = errors.New("drive: file not found")
)

// Folder identifies a created folder.
type Folder struct {
	ID   string
	Name string
}

// File identifies a non-folder entry in a folder.
type File struct {
	ID       string
	Name     string
	MimeType string
}

// UploadRequest describes a create-or-replace-by-name upload.
type UploadRequest struct {
	FolderID string
	FileName string
	Content  io.Reader
	MimeType string
}

// UploadResult carries the id of the written file.
type UploadResult struct {
	FileID string
	Mode   UploadMode
}

// FileStore is the file store used by provisioning and upload finalization.
type FileStore interface {
	CreateFolder(ctx context.Context, name string) (Folder, error)
	FindFileByName(ctx context.Context, folderID, name string) (*File, error)
	UploadOrReplace(ctx context.Context, request UploadRequest) (UploadResult, error)
	ReplaceContent(ctx context.Context, fileID string, content io.Reader, mimeType string) (UploadResult, error)
}

// ViewURL returns the stable public view link for a file id.
func ViewURL(fileID string) string {
	return viewURLPrefix + fileID + viewURLSuffix
}

// EscapeQueryValue escapes a value for use inside a single-quoted Drive query literal.
func EscapeQueryValue(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(escaped, `'`, `\'`)
}

// FindFileQuery builds the lookup query for a named non-folder, non-trashed file in a folder.
func FindFileQuery(folderID, name string) string {
	return "'" + EscapeQueryValue(folderID) + "' in parents" +
		" and name = '" + EscapeQueryValue(name) + "'" +
		" and mimeType != '" + FolderMimeType + "'" +
		" and trashed = false"
}

func mimeTypeOrDefault(mimeType string) string {
	if strings.TrimSpace(mimeType) == "" {
		return DefaultMimeType
	}
	return mimeType
}
