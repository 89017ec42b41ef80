// Package authtokentest はテスト用にES256トークンを発行するヘルパーを提供する。
package authtokentest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/nao1215/sessiongate/pkg/authtoken"
)

// Signer はテスト用のP-256鍵ペアを持ち、アクセストークンを署名する。
type Signer struct {
	Key *ecdsa.PrivateKey
}

// NewSigner は新しい鍵ペアを生成する。
func NewSigner(t testing.TB) *Signer {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("テスト用鍵の生成に失敗: %v", err)
	}
	return &Signer{Key: key}
}

// PublicJWK は公開鍵をJWK形式のJSONで返す。
func (s *Signer) PublicJWK(t testing.TB) []byte {
	t.Helper()
	return marshalJWK(t, &s.Key.PublicKey)
}

// PrivateJWK は秘密鍵をJWK形式のJSONで返す。
func (s *Signer) PrivateJWK(t testing.TB) []byte {
	t.Helper()
	return marshalJWK(t, s.Key)
}

// Claims は有効期限1時間・aud="authenticated"のクレームを生成する。
func Claims(sub, email, fullName, role string) authtoken.Claims {
	now := time.Now()
	return authtoken.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{authtoken.DefaultAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email:        email,
		Role:         role,
		UserMetadata: authtoken.UserMetadata{FullName: fullName},
	}
}

// Sign はクレームをES256で署名したトークン文字列を返す。
func (s *Signer) Sign(t testing.TB, claims authtoken.Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(s.Key)
	if err != nil {
		t.Fatalf("トークンの署名に失敗: %v", err)
	}
	return token
}

func marshalJWK(t testing.TB, raw any) []byte {
	t.Helper()

	key, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("JWKの生成に失敗: %v", err)
	}
	b, err := json.Marshal(key)
	if err != nil {
		t.Fatalf("JWKのシリアライズに失敗: %v", err)
	}
	return b
}
