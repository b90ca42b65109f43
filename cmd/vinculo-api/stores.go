package main

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/blob"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/config"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/drive"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var errMissingRefreshToken = errors.New("drive.oauth.refresh_token is required; run `vinculo-api drive-token` to obtain one")

func newFileStore(ctx context.Context, appConfig config.AppConfig, oauthConfig *oauth2.Config, logger *zap.Logger) (drive.FileStore, error) {
	if appConfig.DriveMode == config.DriveModeMemory {
		logger.Warn("using in-memory file store; videos are lost on restart")
		return drive.NewMemoryStore(), nil
	}
	if appConfig.DriveOAuth.RefreshToken == "" {
		return nil, errMissingRefreshToken
	}
	store, err := drive.NewGoogleStore(ctx, drive.GoogleStoreConfig{
		RootFolderID: appConfig.DriveRootFolder,
		OAuth:        oauthConfig,
		RefreshToken: appConfig.DriveOAuth.RefreshToken,
		Endpoint:     appConfig.DriveEndpoint,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newBlobStore(ctx context.Context, appConfig config.AppConfig) (blob.Store, error) {
	if appConfig.BlobMode == config.BlobModeS3 {
		store, err := blob.NewS3Store(ctx, blob.S3Config{
			Bucket:          appConfig.S3.Bucket,
			Region:          appConfig.S3.Region,
			Endpoint:        appConfig.S3.Endpoint,
			AccessKeyID:     appConfig.S3.AccessKeyID,
			SecretAccessKey: appConfig.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := blob.NewLocalStore(appConfig.BlobLocalDir)
	if err != nil {
		return nil, err
	}
	return store, nil
}
