package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/sessiongate/internal/audit"
	"github.com/nao1215/sessiongate/internal/identity"
	"github.com/nao1215/sessiongate/internal/throttle"
	"github.com/nao1215/sessiongate/pkg/middleware"
)

// IdentityProvider はゲートウェイが呼び出す外部Identity Providerの操作。
type IdentityProvider interface {
	SignUp(ctx context.Context, in identity.SignUpInput) (*identity.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// AuditRecorder は認証操作の監査ログを記録する。
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Event) error
}

// Options はServerの動作設定。
type Options struct {
	// Port はリッスンポート。
	Port string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。0の場合は10秒。
	ShutdownTimeout time.Duration
}

// Deps はServerが利用する外部コンポーネント。
// Limiter、Auditはnilの場合その機能を無効にする。
type Deps struct {
	Provider IdentityProvider
	Verifier middleware.TokenVerifier
	Limiter  throttle.Limiter
	Audit    AuditRecorder
	Logger   *slog.Logger
}

// Server はセッションゲートウェイのHTTPサーバー。
// 生成後に変更される状態は持たないため、リクエスト間で共有しても安全。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port            string
	shutdownTimeout time.Duration

	provider IdentityProvider
	verifier middleware.TokenVerifier
	limiter  throttle.Limiter
	audit    AuditRecorder
	logger   *slog.Logger
	metrics  *metrics
}

// NewServer は新しいゲートウェイサーバーを生成する。
func NewServer(opts Options, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(opts.AllowedOrigins))

	s := &Server{
		router:          router,
		port:            opts.Port,
		shutdownTimeout: shutdownTimeout,
		provider:        deps.Provider,
		verifier:        deps.Verifier,
		limiter:         deps.Limiter,
		audit:           deps.Audit,
		logger:          logger,
		metrics:         newMetrics(),
	}
	s.setupRoutes()
	return s
}

// Handler はルーティング済みのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はポートをリッスンし、ctxがキャンセルされるまでリクエストを処理する。
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("ポート %s のリッスンに失敗: %w", s.port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve はlnでリクエストを処理する。ctxがキャンセルされると新規接続の受付を止め、
// 処理中のリクエストをShutdownTimeoutまで待ってから戻る。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("セッションゲートウェイを起動します", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTPサーバーが停止しました: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("セッションゲートウェイを停止します", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("グレースフルシャットダウンに失敗: %w", err)
	}
	return nil
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.POST("/signup", s.handleSignUp())
		api.POST("/login", s.handleLogin())
		api.POST("/logout", s.handleLogout())
		api.GET("/me", middleware.SessionAuth(middleware.SessionAuthConfig{
			Verifier:   s.verifier,
			CookieName: AccessTokenCookie,
			Logger:     s.logger,
			Observe:    s.metrics.observeSession,
		}), s.handleMe())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.handler()))
}
