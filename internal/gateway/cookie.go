package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// セッションCookieの名前と有効期間（秒）。
const (
	AccessTokenCookie  = "access-token"
	RefreshTokenCookie = "refresh-token"

	accessTokenMaxAge  = 3600
	refreshTokenMaxAge = 604800
)

// sessionCookie はセッションCookieの共通属性を持つCookieを返す。
// 設定時と削除時で属性を揃えないとブラウザは同じCookieとみなさない。
func sessionCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

// setSessionCookies はアクセストークンとリフレッシュトークンのCookieを必ず2つ同時に設定する。
func setSessionCookies(c *gin.Context, accessToken, refreshToken string) {
	http.SetCookie(c.Writer, sessionCookie(AccessTokenCookie, accessToken, accessTokenMaxAge))
	http.SetCookie(c.Writer, sessionCookie(RefreshTokenCookie, refreshToken, refreshTokenMaxAge))
}

// clearSessionCookies は2つのセッションCookieを同じ属性のまま失効させる。
func clearSessionCookies(c *gin.Context) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		cookie := sessionCookie(name, "", -1)
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(c.Writer, cookie)
	}
}
