// Package gateway はブラウザと外部Identity Providerの間に立つセッションゲートウェイを提供する。
//
// ブラウザ側にはHttpOnly Cookieによるセッションを見せ、Provider側にはAPIキーと
// Bearerトークンで接続する。トークンはCookieにだけ置き、サーバー側には保存しない。
// セッション確認（/api/me）は起動時に読み込んだ公開鍵でローカルに検証するため、
// Providerへの通信を発生させない。
package gateway
