// Package config はセッションゲートウェイの設定を環境変数から読み込む。
//
// 設定は起動時に一度だけ構築し、以降は値として各コンポーネントに渡す。
// 実行中に設定を書き換える手段は提供しない。
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// IdentityProvider は外部Identity Providerへの接続設定。
type IdentityProvider struct {
	// BaseURL はProviderのベースURL（例: https://xyz.supabase.co）。
	BaseURL string `env:"BASE_URL, required"`
	// APIKey はapikeyヘッダーで送る匿名APIキー。
	APIKey string `env:"API_KEY, required"`
	// PublicJWK はアクセストークン検証用の公開鍵（JWK形式のJSON）。
	PublicJWK string `env:"PUBLIC_JWK, required"`
	// TokenAudience はアクセストークンに要求するaudクレーム。
	TokenAudience string `env:"TOKEN_AUDIENCE, default=authenticated"`
	// Timeout はProvider呼び出しのHTTPタイムアウト。
	Timeout time.Duration `env:"TIMEOUT, default=30s"`
}

// LoginThrottle はログイン試行回数制限の設定。RedisURLが空の場合は無効。
type LoginThrottle struct {
	RedisURL string        `env:"REDIS_URL"`
	Limit    int           `env:"LOGIN_RATE_LIMIT, default=10"`
	Window   time.Duration `env:"LOGIN_RATE_WINDOW, default=1m"`
}

// Enabled はログイン試行回数制限が有効かどうかを返す。
func (l LoginThrottle) Enabled() bool {
	return l.RedisURL != ""
}

// Config はセッションゲートウェイ全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `env:"PORT, default=3000"`
	// IdentityProvider はIDP_で始まる環境変数から読み込む。
	IdentityProvider IdentityProvider `env:", prefix=IDP_"`
	// CORSAllowedOrigins はクロスオリジンアクセスを許可するオリジン（カンマ区切り）。
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
	// AuditDBPath は認証監査ログのSQLiteファイル。空の場合は監査ログを記録しない。
	AuditDBPath string `env:"AUDIT_DB_PATH"`
	// LoginThrottle はログイン試行回数制限の設定。
	LoginThrottle LoginThrottle
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`
	// LogLevel はログ出力レベル（debug, info, warn, error）。
	LogLevel string `env:"LOG_LEVEL, default=info"`
}

// Load はプロセスの環境変数から設定を読み込む。
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith は指定したLookuperから設定を読み込み、値を検証する。
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	cfg.IdentityProvider.BaseURL = strings.TrimRight(cfg.IdentityProvider.BaseURL, "/")
	cfg.CORSAllowedOrigins = normalizeOrigins(cfg.CORSAllowedOrigins)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SlogLevel はLogLevelをslog.Levelに変換する。
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c Config) validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORTが空です"))
	}
	if !strings.HasPrefix(c.IdentityProvider.BaseURL, "http://") &&
		!strings.HasPrefix(c.IdentityProvider.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("IDP_BASE_URLはhttp(s)のURLである必要があります: %q", c.IdentityProvider.BaseURL))
	}
	if c.IdentityProvider.Timeout <= 0 {
		errs = append(errs, errors.New("IDP_TIMEOUTは正の値である必要があります"))
	}
	if c.LoginThrottle.Enabled() {
		if c.LoginThrottle.Limit <= 0 {
			errs = append(errs, errors.New("LOGIN_RATE_LIMITは正の値である必要があります"))
		}
		if c.LoginThrottle.Window <= 0 {
			errs = append(errs, errors.New("LOGIN_RATE_WINDOWは正の値である必要があります"))
		}
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVELが不正です: %w", err))
	}
	return errors.Join(errs...)
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
