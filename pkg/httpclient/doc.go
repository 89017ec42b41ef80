// Package httpclient は外部サービスとのJSON over HTTP通信を行うクライアントを提供する。
//
// Identity ProviderのREST APIを呼び出す際に使用する。固定ヘッダー（APIキー）の付与、
// コンテキスト経由のBearerトークン伝播、2xx以外のレスポンスのStatusErrorへの変換を
// 一箇所にまとめる。
package httpclient
