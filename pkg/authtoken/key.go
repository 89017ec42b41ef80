package authtoken

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// ErrEmptyKey は公開鍵が設定されていないことを表す。
var ErrEmptyKey = errors.New("公開鍵が設定されていません")

// ParsePublicJWK はJSON Web KeyをES256検証用の公開鍵に変換する。
//
// 単一のJWKのほか、鍵を1つだけ含むJWKS（{"keys":[...]}）も受け付ける。
// 秘密鍵が渡された場合は公開鍵部分のみを取り出す。P-256以外の鍵はエラーとする。
func ParsePublicJWK(raw []byte) (*ecdsa.PublicKey, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyKey
	}

	key, err := parseSingleKey(raw)
	if err != nil {
		return nil, err
	}

	pub, err := key.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("公開鍵の取り出しに失敗: %w", err)
	}

	var rawKey any
	if err := pub.Raw(&rawKey); err != nil {
		return nil, fmt.Errorf("JWKの変換に失敗: %w", err)
	}

	ecKey, ok := rawKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("EC公開鍵ではありません: %T", rawKey)
	}
	if name := ecKey.Curve.Params().Name; name != "P-256" {
		return nil, fmt.Errorf("ES256にはP-256が必要です: curve=%s", name)
	}
	return ecKey, nil
}

func parseSingleKey(raw []byte) (jwk.Key, error) {
	key, err := jwk.ParseKey(raw)
	if err == nil {
		return key, nil
	}

	set, setErr := jwk.Parse(raw)
	if setErr != nil {
		return nil, fmt.Errorf("JWKのパースに失敗: %w", err)
	}
	if set.Len() != 1 {
		return nil, fmt.Errorf("JWKSには鍵が1つだけ必要です: len=%d", set.Len())
	}
	key, _ = set.Key(0)
	return key, nil
}
