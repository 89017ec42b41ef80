package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS は許可リストに含まれるオリジンからのクロスオリジンリクエストだけを通すGinミドルウェアを返す。
//
// セッションはSameSite=NoneのCookieで運ばれるため、資格情報付きリクエストを許可する。
// 許可リストに無いOriginヘッダー付きのリクエストは403で拒否する。
// Originヘッダーの無いリクエスト（同一オリジンのGETやサーバー間通信）はそのまま通す。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originsSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
			return
		}

		if _, ok := originsSet[origin]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Not allowed by CORS",
			})
			return
		}

		c.Writer.Header().Add("Vary", "Origin")
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
