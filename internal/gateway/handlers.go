package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/sessiongate/internal/audit"
	"github.com/nao1215/sessiongate/internal/identity"
	"github.com/nao1215/sessiongate/pkg/httpclient"
	"github.com/nao1215/sessiongate/pkg/middleware"
)

// クライアントに返す固定メッセージ。
const (
	msgSignedUp        = "Signed up and cookies set!"
	msgLoginSucceeded  = "Login successful"
	msgTokensCleared   = "Tokens cleared successfully"
	msgInvalidBody     = "Invalid request body"
	msgMissingFields   = "Email and password required"
	msgTooManyAttempts = "Too many login attempts"
	msgInternalError   = "Internal server error"
)

// errMissingTokens は成功応答にトークンが含まれていないことを表す。
var errMissingTokens = errors.New("ログイン応答にトークンがありません")

// Provider呼び出しの操作名。メトリクスのラベルに使う。
const (
	opSignUp = "signup"
	opLogin  = "login"
	opLogout = "logout"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はクライアントに返すユーザー情報。トークンは含めない。
type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
	Role     string `json:"role,omitempty"`
}

// handleSignUp はユーザー登録をProviderに中継するハンドラを返す。
// Providerのエラーはステータスとボディをそのまま返す。
func (s *Server) handleSignUp() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signUpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
			return
		}

		ctx := c.Request.Context()
		started := time.Now()
		session, err := s.provider.SignUp(ctx, identity.SignUpInput{
			Email:    req.Email,
			Password: req.Password,
			FullName: req.FullName,
		})
		if se, ok := httpclient.AsStatusError(err); ok {
			s.metrics.observeUpstream(opSignUp, outcomeRejected, started)
			s.record(c, audit.KindSignUp, req.Email, audit.OutcomeFailure, se.StatusCode)
			contentType := se.ContentType
			if contentType == "" {
				contentType = "application/json; charset=utf-8"
			}
			c.Data(se.StatusCode, contentType, se.Body)
			return
		}
		if err != nil {
			s.metrics.observeUpstream(opSignUp, outcomeError, started)
			s.internalError(c, "サインアップの中継に失敗", err)
			s.record(c, audit.KindSignUp, req.Email, audit.OutcomeFailure, http.StatusInternalServerError)
			return
		}
		s.metrics.observeUpstream(opSignUp, outcomeSuccess, started)

		// メール確認待ちの場合はトークンが返らないのでCookieを設定しない
		if session.HasTokens() {
			setSessionCookies(c, session.AccessToken, session.RefreshToken)
		}
		s.record(c, audit.KindSignUp, req.Email, audit.OutcomeSuccess, http.StatusOK)
		c.JSON(http.StatusOK, gin.H{"message": msgSignedUp})
	}
}

// handleLogin はパスワードログインをProviderに中継し、トークンをCookieに設定するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
			return
		}

		ctx := c.Request.Context()
		if !s.allowLogin(c) {
			s.metrics.loginThrottled.Inc()
			s.record(c, audit.KindLogin, req.Email, audit.OutcomeThrottled, http.StatusTooManyRequests)
			c.JSON(http.StatusTooManyRequests, gin.H{"error": msgTooManyAttempts})
			return
		}

		started := time.Now()
		session, err := s.provider.SignInWithPassword(ctx, req.Email, req.Password)
		if se, ok := httpclient.AsStatusError(err); ok {
			s.metrics.observeUpstream(opLogin, outcomeRejected, started)
			s.record(c, audit.KindLogin, req.Email, audit.OutcomeFailure, se.StatusCode)
			c.JSON(se.StatusCode, gin.H{"error": providerErrorMessage(se)})
			return
		}
		if err != nil {
			s.metrics.observeUpstream(opLogin, outcomeError, started)
			s.internalError(c, "ログインの中継に失敗", err)
			s.record(c, audit.KindLogin, req.Email, audit.OutcomeFailure, http.StatusInternalServerError)
			return
		}
		if !session.HasTokens() {
			s.metrics.observeUpstream(opLogin, outcomeError, started)
			s.internalError(c, "ログインの中継に失敗", errMissingTokens)
			s.record(c, audit.KindLogin, req.Email, audit.OutcomeFailure, http.StatusInternalServerError)
			return
		}
		s.metrics.observeUpstream(opLogin, outcomeSuccess, started)

		setSessionCookies(c, session.AccessToken, session.RefreshToken)
		s.record(c, audit.KindLogin, req.Email, audit.OutcomeSuccess, http.StatusOK)
		c.JSON(http.StatusOK, gin.H{
			"message": msgLoginSucceeded,
			"user": userResponse{
				ID:       session.User.ID,
				Email:    session.User.Email,
				FullName: session.User.UserMetadata.FullName,
			},
		})
	}
}

// handleMe は検証済みのクレームからユーザー情報を返すハンドラを返す。
// 検証はSessionAuthミドルウェアで済んでいる。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false, "user": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"authenticated": true,
			"user": userResponse{
				ID:       claims.Subject,
				Email:    claims.Email,
				FullName: claims.UserMetadata.FullName,
				Role:     claims.Role,
			},
		})
	}
}

// handleLogout はProvider側のセッションを無効化し、Cookieを削除するハンドラを返す。
// Providerの失敗はログに出すだけで、レスポンスは常に200とする。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
			started := time.Now()
			if signOutErr := s.provider.SignOut(c.Request.Context(), token); signOutErr != nil {
				outcome := outcomeError
				status = http.StatusBadGateway
				if se, ok := httpclient.AsStatusError(signOutErr); ok {
					outcome = outcomeRejected
					status = se.StatusCode
				}
				s.metrics.observeUpstream(opLogout, outcome, started)
				s.logger.WarnContext(c.Request.Context(), "Provider側のログアウトに失敗",
					"error", signOutErr,
					"request_id", middleware.GetRequestID(c),
				)
			} else {
				s.metrics.observeUpstream(opLogout, outcomeSuccess, started)
			}
		}

		clearSessionCookies(c)
		outcome := audit.OutcomeSuccess
		if status != http.StatusOK {
			outcome = audit.OutcomeFailure
		}
		s.record(c, audit.KindLogout, "", outcome, status)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": msgTokensCleared})
	}
}

// allowLogin はクライアントIPのログイン試行が上限以内かを返す。
// 制限が無効な場合やRedisが使えない場合は許可する。
func (s *Server) allowLogin(c *gin.Context) bool {
	if s.limiter == nil {
		return true
	}
	allowed, err := s.limiter.Allow(c.Request.Context(), c.ClientIP())
	if err != nil {
		s.logger.WarnContext(c.Request.Context(), "ログイン試行回数の確認に失敗したため許可します",
			"error", err,
			"request_id", middleware.GetRequestID(c),
		)
		return true
	}
	return allowed
}

// record は監査ログを1件記録する。失敗してもレスポンスには影響させない。
func (s *Server) record(c *gin.Context, kind audit.Kind, email string, outcome audit.Outcome, status int) {
	if s.audit == nil {
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	err := s.audit.Record(ctx, audit.Event{
		Kind:       kind,
		Email:      email,
		Outcome:    outcome,
		Status:     status,
		RemoteAddr: c.ClientIP(),
		RequestID:  middleware.GetRequestID(c),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "監査ログの記録に失敗", "error", err, "kind", kind)
	}
}

// internalError は詳細をログに出し、クライアントには汎用の500を返す。
func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.ErrorContext(c.Request.Context(), msg,
		"error", err,
		"request_id", middleware.GetRequestID(c),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
}

// providerErrorMessage はProviderのエラーレスポンスからクライアント向けのメッセージを取り出す。
// error_description, error, msg, message の順に最初の空でない文字列を使う。
func providerErrorMessage(se *httpclient.StatusError) string {
	var body map[string]any
	if err := json.Unmarshal(se.Body, &body); err == nil {
		for _, key := range []string{"error_description", "error", "msg", "message"} {
			if v, ok := body[key].(string); ok && v != "" {
				return v
			}
		}
	}
	if text := http.StatusText(se.StatusCode); text != "" {
		return text
	}
	return "Login failed"
}
