package authtoken

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAudience はaudience未指定時に要求するaudクレーム。
const DefaultAudience = "authenticated"

// ErrInvalidToken は検証に失敗したすべてのトークンに共通するエラー。
// 期限切れ・署名不一致・audience不一致などの詳細はラップされた原因に含まれる。
var ErrInvalidToken = errors.New("トークンが無効です")

// Verifier はアクセストークンをローカルで検証する。
// 生成後は不変で、複数のgoroutineから同時に利用できる。
type Verifier struct {
	key    *ecdsa.PublicKey
	parser *jwt.Parser
}

// NewVerifier は公開鍵と要求audienceからVerifierを生成する。
// 署名アルゴリズムはES256に固定し、expクレームを必須とする。
func NewVerifier(key *ecdsa.PublicKey, audience string) *Verifier {
	if audience == "" {
		audience = DefaultAudience
	}
	return &Verifier{
		key: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify はトークンの署名とクレームを検証し、クレームを返す。
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subクレームがありません", ErrInvalidToken)
	}
	return claims, nil
}
