// Package authtoken はIdentity Providerが発行したアクセストークンをローカルで検証する。
//
// 起動時に一度だけ読み込んだ公開鍵（JWK）を使い、ES256署名・audience・有効期限を
// ネットワーク通信なしで検証する。Provider側でのセッション失効は有効期限まで検知できない。
package authtoken
