package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/sessiongate/pkg/authtoken"
)

// セッション検証の結果。メトリクスのラベルとして使う。
const (
	SessionMissing = "missing"
	SessionInvalid = "invalid"
	SessionValid   = "valid"
)

const contextKeyClaims = "session_claims"

// TokenVerifier はアクセストークンを検証する。
type TokenVerifier interface {
	Verify(token string) (*authtoken.Claims, error)
}

// SessionAuthConfig はSessionAuthミドルウェアの設定。
type SessionAuthConfig struct {
	// Verifier はトークンのローカル検証器。
	Verifier TokenVerifier
	// CookieName はアクセストークンを運ぶCookie名。
	CookieName string
	// Logger は検証失敗の理由を出力するロガー。nilの場合はslog.Default()を使う。
	Logger *slog.Logger
	// Observe は検証結果ごとに呼ばれる。nilの場合は何もしない。
	Observe func(result string)
}

// SessionAuth はCookieのアクセストークンを検証するGinミドルウェアを返す。
//
// Cookieが無い場合も検証に失敗した場合も、同じ401レスポンス
// {"authenticated":false,"user":null} を返す。失敗理由はログにだけ出力する。
// 検証に成功した場合、クレームをコンテキストに設定する。
func SessionAuth(cfg SessionAuthConfig) gin.HandlerFunc {
	observe := cfg.Observe
	if observe == nil {
		observe = func(string) {}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		token, err := c.Cookie(cfg.CookieName)
		if err != nil || token == "" {
			observe(SessionMissing)
			abortUnauthenticated(c)
			return
		}

		claims, err := cfg.Verifier.Verify(token)
		if err != nil {
			observe(SessionInvalid)
			logger.WarnContext(c.Request.Context(), "セッションの検証に失敗",
				"error", err,
				"request_id", GetRequestID(c),
			)
			abortUnauthenticated(c)
			return
		}

		observe(SessionValid)
		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims はGinコンテキストから検証済みクレームを取得する。
// SessionAuthミドルウェアが事前に適用されている必要がある。
func GetClaims(c *gin.Context) *authtoken.Claims {
	v, ok := c.Get(contextKeyClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*authtoken.Claims)
	return claims
}

func abortUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"authenticated": false,
		"user":          nil,
	})
}
