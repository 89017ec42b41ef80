package authtoken

import "github.com/golang-jwt/jwt/v5"

// Claims はアクセストークンのペイロードのうちゲートウェイが利用する部分。
type Claims struct {
	jwt.RegisteredClaims
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Role はProviderが付与したロール（例: "authenticated"）。
	Role string `json:"role"`
	// UserMetadata はサインアップ時に登録した任意のユーザー情報。
	UserMetadata UserMetadata `json:"user_metadata"`
}

// UserMetadata はuser_metadataクレーム。
type UserMetadata struct {
	FullName string `json:"full_name,omitempty"`
}
