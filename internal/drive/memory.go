package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type memoryFile struct {
	id       string
	folderID string
	name     string
	mimeType string
	content  []byte
}

// MemoryStore is an in-process FileStore for local development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	folders map[string]Folder
	files   map[string]*memoryFile
	writes  int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		folders: map[string]Folder{},
		files:   map[string]*memoryFile{},
	}
}

// CreateFolder records a folder and returns its generated id.
func (s *MemoryStore) CreateFolder(ctx context.Context, name string) (Folder, error) {
	if err := ctx.Err(); err != nil {
		return Folder{}, err
	}
	if strings.TrimSpace(name) == "" {
		return Folder{}, ErrMissingFile
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	folder := Folder{ID: "folder-" + uuid.NewString(), Name: name}
	s.folders[folder.ID] = folder
	return folder, nil
}

// FindFileByName returns the file named name in folderID, or nil.
func (s *MemoryStore) FindFileByName(ctx context.Context, folderID, name string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(folderID) == "" {
		return nil, ErrMissingFolder
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrMissingFile
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.lookupLocked(folderID, name)
	if entry == nil {
		return nil, nil
	}
	return &File{ID: entry.id, Name: entry.name, MimeType: entry.mimeType}, nil
}

// UploadOrReplace creates the named file or overwrites its content keeping the id.
func (s *MemoryStore) UploadOrReplace(ctx context.Context, request UploadRequest) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{}, err
	}
	if strings.TrimSpace(request.FolderID) == "" {
		return UploadResult{}, ErrMissingFolder
	}
	if strings.TrimSpace(request.FileName) == "" {
		return UploadResult{}, ErrMissingFile
	}
	content, err := readContent(request.Content)
	if err != nil {
		return UploadResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes++
	mimeType := mimeTypeOrDefault(request.MimeType)
	if entry := s.lookupLocked(request.FolderID, request.FileName); entry != nil {
		entry.content = content
		entry.mimeType = mimeType
		return UploadResult{FileID: entry.id, Mode: UploadModeReplaced}, nil
	}

	entry := &memoryFile{
		id:       "file-" + uuid.NewString(),
		folderID: request.FolderID,
		name:     request.FileName,
		mimeType: mimeType,
		content:  content,
	}
	s.files[entry.id] = entry
	return UploadResult{FileID: entry.id, Mode: UploadModeCreated}, nil
}

// ReplaceContent overwrites a known file.
func (s *MemoryStore) ReplaceContent(ctx context.Context, fileID string, content io.Reader, mimeType string) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{}, err
	}
	if strings.TrimSpace(fileID) == "" {
		return UploadResult{}, ErrMissingFile
	}
	payload, err := readContent(content)
	if err != nil {
		return UploadResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.files[fileID]
	if !ok {
		return UploadResult{}, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	s.writes++
	entry.content = payload
	entry.mimeType = mimeTypeOrDefault(mimeType)
	return UploadResult{FileID: entry.id, Mode: UploadModeReplaced}, nil
}

// Content returns a copy of a stored file's bytes.
func (s *MemoryStore) Content(fileID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.files[fileID]
	if !ok {
		return nil, false
	}
	return bytes.Clone(entry.content), true
}

// Folder reports a created folder by id.
func (s *MemoryStore) Folder(folderID string) (Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	folder, ok := s.folders[folderID]
	return folder, ok
}

// Writes counts content writes performed so far.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *MemoryStore) lookupLocked(folderID, name string) *memoryFile {
	for _, entry := range s.files {
		if entry.folderID == folderID && entry.name == name {
			return entry
		}
	}
	return nil
}

func readContent(content io.Reader) ([]byte, error) {
	if content == nil {
		return nil, nil
	}
	payload, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("read upload content: %w", err)
	}
	return payload, nil
}
