package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/cards"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/clients"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/config"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/database"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/drive"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/events"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/qr"
	"github.com/MarcoPoloResearchLab/vinculo/backend/internal/server"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile      string
	envFiles     = []string{".env.local", ".env"}
	consentCode  string
	consentState string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vinculo-api",
		Short: "Vinculo card and video admin service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newDriveTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", "", "Postgres DSN")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("site-base-url", "", "Public base URL used in card QR codes")
	cmd.PersistentFlags().String("drive-mode", defaults.GetString("drive.mode"), "File store (google, memory)")
	cmd.PersistentFlags().String("drive-root-folder", "", "Drive folder that holds event folders")
	cmd.PersistentFlags().String("blob-mode", defaults.GetString("blob.mode"), "Temp blob store (local, s3)")
	cmd.PersistentFlags().String("blob-local-dir", defaults.GetString("blob.local_dir"), "Directory for staged uploads")
	cmd.PersistentFlags().String("signing-secret", "", "Upload token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "site.base_url", "site-base-url")
	bindFlag(cmd, "drive.mode", "drive-mode")
	bindFlag(cmd, "drive.root_folder_id", "drive-root-folder")
	bindFlag(cmd, "blob.mode", "blob-mode")
	bindFlag(cmd, "blob.local_dir", "blob-local-dir")
	bindFlag(cmd, "tokens.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// newDriveTokenCommand walks staff through the Drive consent flow from a terminal.
// Without --code it prints the consent URL; with --code it prints the refresh token.
func newDriveTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive-token",
		Short: "Obtain the Drive refresh token for the service account owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			helper := drive.NewOAuthHelper(drive.NewOAuthConfig(
				v.GetString("drive.oauth.client_id"),
				v.GetString("drive.oauth.client_secret"),
				v.GetString("drive.oauth.redirect_url"),
			))
			out := cmd.OutOrStdout()
			if consentCode == "" {
				_, err := fmt.Fprintln(out, helper.ConsentURL(consentState))
				return err
			}
			token, err := helper.Exchange(cmd.Context(), consentCode)
			if err != nil {
				return err
			}
			if token.RefreshToken == "" {
				return errors.New("google returned no refresh token; revoke the app grant and retry")
			}
			_, err = fmt.Fprintf(out, "VINCULO_DRIVE_OAUTH_REFRESH_TOKEN=%s\n", token.RefreshToken)
			return err
		},
	}
	cmd.Flags().StringVar(&consentCode, "code", "", "Authorization code returned by the consent screen")
	cmd.Flags().StringVar(&consentState, "state", "vinculo-cli", "State value for the consent URL")
	return cmd
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var oauthHelper *drive.OAuthHelper
	oauthConfig := drive.NewOAuthConfig(appConfig.DriveOAuth.ClientID, appConfig.DriveOAuth.ClientSecret, appConfig.DriveOAuth.RedirectURL)
	if appConfig.DriveOAuth.ClientID != "" {
		oauthHelper = drive.NewOAuthHelper(oauthConfig)
	}

	files, err := newFileStore(ctx, appConfig, oauthConfig, logger)
	if err != nil {
		return err
	}
	blobs, err := newBlobStore(ctx, appConfig)
	if err != nil {
		return err
	}

	tokenIssuer, err := auth.NewUploadTokenIssuer(auth.UploadTokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.TokenIssuer,
	})
	if err != nil {
		return err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	cardService, err := cards.NewService(cards.ServiceConfig{
		Database:        db,
		Files:           files,
		Blobs:           blobs,
		Tokens:          tokenIssuer,
		Clock:           time.Now,
		IDProvider:      cards.NewUUIDProvider(),
		Logger:          logger,
		TransferTimeout: appConfig.TransferTimeout,
	})
	if err != nil {
		return err
	}

	eventService, err := events.NewService(events.ServiceConfig{
		Database:  db,
		Folders:   files,
		Cards:     cardService,
		Validator: validate,
		Clock:     time.Now,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	clientService, err := clients.NewService(clients.ServiceConfig{
		Database:  db,
		Validator: validate,
		Clock:     time.Now,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Clients:        clientService,
		Events:         eventService,
		Cards:          cardService,
		QRCodes:        qr.NewRenderer(),
		OAuth:          oauthHelper,
		SiteBaseURL:    appConfig.SiteBaseURL,
		AllowedOrigins: appConfig.AllowedOrigins,
		MaxUploadBytes: appConfig.MaxUploadBytes,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("drive_mode", appConfig.DriveMode),
			zap.String("blob_mode", appConfig.BlobMode))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
