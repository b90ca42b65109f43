package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleStoreConfig configures the Drive-backed file store.
type GoogleStoreConfig struct {
	RootFolderID string
	OAuth        *oauth2.Config
	RefreshToken string
	// Endpoint overrides the Drive API base URL.
	Endpoint string
	// HTTPClient replaces the OAuth2 client, typically in tests.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// GoogleStore implements FileStore over the Drive v3 API.
type GoogleStore struct {
	service      *drivev3.Service
	rootFolderID string
	logger       *zap.Logger
}

// NewGoogleStore builds a Drive client from refresh-token credentials.
func NewGoogleStore(ctx context.Context, cfg GoogleStoreConfig) (*GoogleStore, error) {
	if strings.TrimSpace(cfg.RootFolderID) == "" {
		return nil, fmt.Errorf("drive root folder id is required")
	}

	var clientOpts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		clientOpts = append(clientOpts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.OAuth != nil:
		if strings.TrimSpace(cfg.RefreshToken) == "" {
			return nil, fmt.Errorf("drive refresh token is required")
		}
		tokenSource := cfg.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
		clientOpts = append(clientOpts, option.WithTokenSource(tokenSource))
	default:
		return nil, fmt.Errorf("drive credentials are required")
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}

	service, err := drivev3.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GoogleStore{
		service:      service,
		rootFolderID: cfg.RootFolderID,
		logger:       logger,
	}, nil
}

// CreateFolder creates a folder below the root and shares it read-only with anyone holding the link.
func (s *GoogleStore) CreateFolder(ctx context.Context, name string) (Folder, error) {
	if strings.TrimSpace(name) == "" {
		return Folder{}, ErrMissingFile
	}

	created, err := s.service.Files.Create(&drivev3.File{
		Name:     name,
		MimeType: FolderMimeType,
		Parents:  []string{s.rootFolderID},
	}).Fields("id, name").Context(ctx).Do()
	if err != nil {
		return Folder{}, fmt.Errorf("create drive folder %q: %w", name, err)
	}

	permission := &drivev3.Permission{
		Type:               "anyone",
		Role:               "reader",
		AllowFileDiscovery: false,
		ForceSendFields:    []string{"AllowFileDiscovery"},
	}
	if _, err := s.service.Permissions.Create(created.Id, permission).Context(ctx).Do(); err != nil {
		s.logger.Warn("drive folder permission grant failed",
			zap.String("folder_id", created.Id),
			zap.String("folder_name", name),
			zap.Error(err))
	}

	return Folder{ID: created.Id, Name: created.Name}, nil
}

// FindFileByName returns the first matching file or nil when none exists.
func (s *GoogleStore) FindFileByName(ctx context.Context, folderID, name string) (*File, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, ErrMissingFolder
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrMissingFile
	}

	listing, err := s.service.Files.List().
		Q(FindFileQuery(folderID, name)).
		PageSize(1).
		Fields("files(id, name, mimeType)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("find drive file %q: %w", name, err)
	}
	if len(listing.Files) == 0 {
		return nil, nil
	}
	entry := listing.Files[0]
	return &File{ID: entry.Id, Name: entry.Name, MimeType: entry.MimeType}, nil
}

// UploadOrReplace overwrites the named file in place when present, otherwise creates it.
func (s *GoogleStore) UploadOrReplace(ctx context.Context, request UploadRequest) (UploadResult, error) {
	if strings.TrimSpace(request.FolderID) == "" {
		return UploadResult{}, ErrMissingFolder
	}
	if strings.TrimSpace(request.FileName) == "" {
		return UploadResult{}, ErrMissingFile
	}

	existing, err := s.FindFileByName(ctx, request.FolderID, request.FileName)
	if err != nil {
		return UploadResult{}, err
	}
	if existing != nil {
		return s.ReplaceContent(ctx, existing.ID, request.Content, request.MimeType)
	}

	mimeType := mimeTypeOrDefault(request.MimeType)
	created, err := s.service.Files.Create(&drivev3.File{
		Name:     request.FileName,
		MimeType: mimeType,
		Parents:  []string{request.FolderID},
	}).Media(request.Content, googleapi.ContentType(mimeType)).Fields("id").Context(ctx).Do()
	if err != nil {
		return UploadResult{}, fmt.Errorf("create drive file %q: %w", request.FileName, err)
	}
	return UploadResult{FileID: created.Id, Mode: UploadModeCreated}, nil
}

// ReplaceContent overwrites the content of a known file id.
func (s *GoogleStore) ReplaceContent(ctx context.Context, fileID string, content io.Reader, mimeType string) (UploadResult, error) {
	if strings.TrimSpace(fileID) == "" {
		return UploadResult{}, ErrMissingFile
	}

	updated, err := s.service.Files.Update(fileID, &drivev3.File{}).
		Media(content, googleapi.ContentType(mimeTypeOrDefault(mimeType))).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return UploadResult{}, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
		}
		return UploadResult{}, fmt.Errorf("replace drive file %s: %w", fileID, err)
	}
	return UploadResult{FileID: updated.Id, Mode: UploadModeReplaced}, nil
}
