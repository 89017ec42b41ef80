// Package identity は外部Identity ProviderのREST APIを呼び出すクライアントを提供する。
//
// サインアップ、パスワードによるログイン、ログアウトの3操作だけを扱う。
// 2xx以外のレスポンスは*httpclient.StatusErrorとして返し、解釈は呼び出し元に任せる。
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/sessiongate/pkg/httpclient"
)

// Provider APIのパス。
const (
	pathSignUp = "/auth/v1/signup"
	pathToken  = "/auth/v1/token?grant_type=password"
	pathLogout = "/auth/v1/logout"
)

// UserMetadata はユーザー登録時に保存される任意属性。
type UserMetadata struct {
	FullName string `json:"full_name,omitempty"`
}

// User はProviderが返すユーザー情報。
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// Session はProviderが発行したトークンとユーザー情報。
// トークンはCookieにだけ載せ、レスポンスボディや永続化ストアには出さない。
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// HasTokens はアクセストークンとリフレッシュトークンの両方が揃っているかを返す。
// メール確認待ちのサインアップではトークンが返らない。
func (s *Session) HasTokens() bool {
	return s != nil && s.AccessToken != "" && s.RefreshToken != ""
}

// SignUpInput はサインアップのリクエスト。
type SignUpInput struct {
	Email    string
	Password string
	FullName string
}

type signUpRequest struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Data     UserMetadata `json:"data"`
}

type passwordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Client はIdentity ProviderのAPIクライアント。
type Client struct {
	http *httpclient.Client
}

// NewClient はbaseURLのProviderに接続するクライアントを生成する。
// apiKeyは全リクエストのapikeyヘッダーとして送信する。
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		http: httpclient.New(baseURL,
			httpclient.WithTimeout(timeout),
			httpclient.WithHeader("apikey", apiKey),
		),
	}
}

// SignUp はユーザーを登録する。
func (c *Client) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	var session Session
	err := c.http.PostJSON(ctx, pathSignUp, signUpRequest{
		Email:    in.Email,
		Password: in.Password,
		Data:     UserMetadata{FullName: in.FullName},
	}, &session)
	if err != nil {
		return nil, fmt.Errorf("サインアップに失敗: %w", err)
	}
	return &session, nil
}

// SignInWithPassword はメールアドレスとパスワードでトークンを取得する。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	err := c.http.PostJSON(ctx, pathToken, passwordGrantRequest{
		Email:    email,
		Password: password,
	}, &session)
	if err != nil {
		return nil, fmt.Errorf("ログインに失敗: %w", err)
	}
	return &session, nil
}

// SignOut はアクセストークンに紐づくセッションをProvider側で無効化する。
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if err := c.http.PostJSON(httpclient.WithBearerToken(ctx, accessToken), pathLogout, nil, nil); err != nil {
		return fmt.Errorf("ログアウトに失敗: %w", err)
	}
	return nil
}
