package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/marketplace/internal/asset"
	"github.com/utafrali/marketplace/internal/asset/filesystem"
	"github.com/utafrali/marketplace/internal/asset/memory"
	"github.com/utafrali/marketplace/internal/asset/s3"
	"github.com/utafrali/marketplace/internal/config"
	handler "github.com/utafrali/marketplace/internal/handler/http"
	"github.com/utafrali/marketplace/internal/mail"
)

// newAssetStore builds the configured asset backend. Only the filesystem
// backend is served by this process, so only it returns static routing.
func newAssetStore(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (asset.Store, *handler.StaticAssets, error) {
	switch cfg.AssetBackend {
	case "filesystem":
		store, err := filesystem.New(cfg.AssetDir, cfg.AssetPublicPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("init filesystem asset store: %w", err)
		}
		return store, &handler.StaticAssets{Dir: store.Dir(), Prefix: store.Prefix()}, nil

	case "s3":
		if err := s3.RegisterMetrics(reg); err != nil {
			return nil, nil, fmt.Errorf("register asset store metrics: %w", err)
		}
		store, err := s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicURL,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init s3 asset store: %w", err)
		}
		return store, nil, nil

	case "memory":
		logger.Warn("using in-memory asset store; uploads are lost on restart")
		return memory.New(cfg.AssetPublicPrefix), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown asset backend %q", cfg.AssetBackend)
	}
}

func newMailer(cfg *config.Config, logger *slog.Logger) mail.Sender {
	if cfg.MailBackend == "smtp" {
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}
	logger.Warn("MAIL_BACKEND=log: verification mail is written to the log only")
	return mail.NewLogSender(logger)
}
