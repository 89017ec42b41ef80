package authtoken_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/sessiongate/pkg/authtoken"
	"github.com/nao1215/sessiongate/pkg/authtoken/authtokentest"
)

// TestParsePublicJWK はJWKの読み込みを検証する。
func TestParsePublicJWK(t *testing.T) {
	t.Parallel()

	t.Run("EC公開鍵のJWKを読み込めること", func(t *testing.T) {
		t.Parallel()

		signer := authtokentest.NewSigner(t)
		key, err := authtoken.ParsePublicJWK(signer.PublicJWK(t))
		require.NoError(t, err)
		assert.True(t, key.Equal(&signer.Key.PublicKey))
	})

	t.Run("秘密鍵のJWKからは公開鍵部分が取り出されること", func(t *testing.T) {
		t.Parallel()

		signer := authtokentest.NewSigner(t)
		key, err := authtoken.ParsePublicJWK(signer.PrivateJWK(t))
		require.NoError(t, err)
		assert.True(t, key.Equal(&signer.Key.PublicKey))
	})

	t.Run("鍵を1つ含むJWKSを読み込めること", func(t *testing.T) {
		t.Parallel()

		signer := authtokentest.NewSigner(t)
		jwks := fmt.Sprintf(`{"keys":[%s]}`, signer.PublicJWK(t))
		key, err := authtoken.ParsePublicJWK([]byte(jwks))
		require.NoError(t, err)
		assert.True(t, key.Equal(&signer.Key.PublicKey))
	})

	t.Run("空の入力はErrEmptyKeyになること", func(t *testing.T) {
		t.Parallel()

		_, err := authtoken.ParsePublicJWK([]byte("  "))
		assert.ErrorIs(t, err, authtoken.ErrEmptyKey)
	})

	t.Run("JSONでない入力はエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := authtoken.ParsePublicJWK([]byte("not-a-jwk"))
		assert.Error(t, err)
	})

	t.Run("RSA鍵はエラーになること", func(t *testing.T) {
		t.Parallel()

		rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		_, err = authtoken.ParsePublicJWK(mustJWK(t, &rsaKey.PublicKey))
		assert.Error(t, err)
	})

	t.Run("P-384の鍵はエラーになること", func(t *testing.T) {
		t.Parallel()

		ecKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		require.NoError(t, err)
		_, err = authtoken.ParsePublicJWK(mustJWK(t, &ecKey.PublicKey))
		assert.Error(t, err)
	})
}

// TestVerifier はローカル検証を検証する。
func TestVerifier(t *testing.T) {
	t.Parallel()

	signer := authtokentest.NewSigner(t)
	verifier := authtoken.NewVerifier(&signer.Key.PublicKey, "")

	t.Run("有効なトークンのクレームが取得できること", func(t *testing.T) {
		t.Parallel()

		token := signer.Sign(t, authtokentest.Claims("user-1", "a@example.com", "Alice", "authenticated"))
		claims, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "a@example.com", claims.Email)
		assert.Equal(t, "Alice", claims.UserMetadata.FullName)
		assert.Equal(t, "authenticated", claims.Role)
	})

	t.Run("期限切れのトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		claims := authtokentest.Claims("user-1", "a@example.com", "", "authenticated")
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := verifier.Verify(signer.Sign(t, claims))
		assert.ErrorIs(t, err, authtoken.ErrInvalidToken)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("expクレームの無いトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		claims := authtokentest.Claims("user-1", "a@example.com", "", "authenticated")
		claims.ExpiresAt = nil
		_, err := verifier.Verify(signer.Sign(t, claims))
		assert.ErrorIs(t, err, authtoken.ErrInvalidToken)
	})

	t.Run("別の鍵で署名されたトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		other := authtokentest.NewSigner(t)
		token := other.Sign(t, authtokentest.Claims("user-1", "a@example.com", "", "authenticated"))
		_, err := verifier.Verify(token)
		assert.ErrorIs(t, err, authtoken.ErrInvalidToken)
	})

	t.Run("audienceが異なるトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		claims := authtokentest.Claims("user-1", "a@example.com", "", "authenticated")
		claims.Audience = jwt.ClaimStrings{"anon"}
		_, err := verifier.Verify(signer.Sign(t, claims))
		assert.ErrorIs(t, err, authtoken.ErrInvalidToken)
	})

	t.Run("audienceが無いトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		claims := authtokentest.Claims("user-1", "a@example.com", "", "authenticated")
		claims.Audience = nil
		_, err := verifier.Verify(signer.Sign(t, claims))
		assert.ErrorIs(t, err, authtoken.ErrInvalidToken)
	})

	t.Run("指定したaudienceで検証できること", func(t *testing.T) {
		t.Parallel()

		custom := authtoken.NewVerifier(&signer.Key.PublicKey, "mobile")
		claims := authtokentest.Claims("user-1", "a@example.com", "", "authenticated")
		claims.Audience = jwt.ClaimStrings{"mobile"}
		_, err := custom.Verify(signer.Sign(t, claims))
		assert.NoError(t, err)
	})

	t.Run("HS256で署名されたトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		claims := authtokentest.Claims("user-1", "a@example.com", "", "authenticated")
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		assert.ErrorIs(t, err, authtoken.ErrInvalidToken)
	})

	t.Run("subクレームの無いトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		_, err := verifier.Verify(signer.Sign(t, authtokentest.Claims("", "a@example.com", "", "authenticated")))
		assert.ErrorIs(t, err, authtoken.ErrInvalidToken)
	})

	t.Run("不正な形式のトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		_, err := verifier.Verify("not.a.jwt")
		assert.ErrorIs(t, err, authtoken.ErrInvalidToken)
	})
}

func mustJWK(t *testing.T, raw any) []byte {
	t.Helper()

	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	b, err := json.Marshal(key)
	require.NoError(t, err)
	return b
}
