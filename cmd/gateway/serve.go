package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/nao1215/sessiongate/internal/audit"
	"github.com/nao1215/sessiongate/internal/config"
	"github.com/nao1215/sessiongate/internal/gateway"
	"github.com/nao1215/sessiongate/internal/identity"
	"github.com/nao1215/sessiongate/internal/throttle"
	"github.com/nao1215/sessiongate/pkg/authtoken"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "セッションゲートウェイを起動する",
		Action: runServe,
		Description: `
Environment variables:
	IDP_BASE_URL          (required)
	IDP_API_KEY           (required)
	IDP_PUBLIC_JWK        (required)
	IDP_TOKEN_AUDIENCE    (default: authenticated)
	IDP_TIMEOUT           (default: 30s)
	PORT                  (default: 3000)
	CORS_ALLOWED_ORIGINS  (comma-separated list; requests whose Origin is not
	                       listed get 403, so empty rejects all browser POSTs,
	                       same-origin included)
	AUDIT_DB_PATH         (empty: audit log disabled)
	REDIS_URL             (empty: login throttle disabled)
	LOGIN_RATE_LIMIT      (default: 10)
	LOGIN_RATE_WINDOW     (default: 1m)
	SHUTDOWN_TIMEOUT      (default: 10s)
	LOG_LEVEL             (default: info)
`,
	}
}

func runServe(ctx context.Context, _ *cli.Command) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	key, err := authtoken.ParsePublicJWK([]byte(cfg.IdentityProvider.PublicJWK))
	if err != nil {
		return fmt.Errorf("IDP_PUBLIC_JWKの読み込みに失敗: %w", err)
	}

	deps := gateway.Deps{
		Provider: identity.NewClient(
			cfg.IdentityProvider.BaseURL,
			cfg.IdentityProvider.APIKey,
			cfg.IdentityProvider.Timeout,
		),
		Verifier: authtoken.NewVerifier(key, cfg.IdentityProvider.TokenAudience),
		Logger:   logger,
	}

	if cfg.AuditDBPath != "" {
		store, err := audit.Open(ctx, cfg.AuditDBPath, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("監査ログDBのクローズに失敗", "error", err)
			}
		}()
		deps.Audit = store
		logger.Info("監査ログを有効にしました", "path", cfg.AuditDBPath)
	}

	if cfg.LoginThrottle.Enabled() {
		client, err := throttle.NewRedisClient(ctx, cfg.LoginThrottle.RedisURL)
		if client == nil {
			return err
		}
		if err != nil {
			// 接続できなくても起動は続け、試行回数の確認時に許可側へ倒す
			logger.Warn("Redisに接続できません", "error", err)
		}
		defer func() { _ = client.Close() }()
		deps.Limiter = throttle.NewRedisLimiter(client, cfg.LoginThrottle.Limit, cfg.LoginThrottle.Window)
		logger.Info("ログイン試行回数制限を有効にしました",
			"limit", cfg.LoginThrottle.Limit,
			"window", cfg.LoginThrottle.Window,
		)
	}

	server := gateway.NewServer(gateway.Options{
		Port:            cfg.Port,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, deps)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx)
}
