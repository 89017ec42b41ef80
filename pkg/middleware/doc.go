// Package middleware はセッションゲートウェイのHTTP APIで使用するGinミドルウェアを提供する。
//
// CookieによるセッションのJWTローカル検証、リクエストIDとリクエストログ、
// パニックリカバリ、許可リスト方式のCORSを含む。
package middleware
