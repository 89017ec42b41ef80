package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	Method  string
	Path    string
	Query   string
	Body    []byte
	Headers http.Header
}

// testPayload はテスト用のリクエスト/レスポンスペイロード。
type testPayload struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("デフォルトのタイムアウトが30秒であること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080")
		require.NotNil(t, client)
		assert.Equal(t, "http://localhost:8080", client.baseURL)
		assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	})

	t.Run("WithTimeoutでタイムアウトを変更できること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080", WithTimeout(5*time.Second))
		assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	})

	t.Run("0以下のタイムアウトは無視されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080", WithTimeout(0))
		assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("固定ヘッダーとJSONボディが送信されレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received.Method = r.Method
			received.Path = r.URL.Path
			received.Query = r.URL.RawQuery
			received.Body, _ = io.ReadAll(r.Body)
			received.Headers = r.Header

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(testPayload{Name: "response", Value: 200})
		}))
		defer ts.Close()

		client := New(ts.URL, WithHeader("apikey", "anon-key"))
		var result testPayload

		err := client.PostJSON(context.Background(), "/auth/v1/token?grant_type=password", testPayload{Name: "request", Value: 100}, &result)
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, received.Method)
		assert.Equal(t, "/auth/v1/token", received.Path)
		assert.Equal(t, "grant_type=password", received.Query)
		assert.Equal(t, "application/json", received.Headers.Get("Content-Type"))
		assert.Equal(t, "anon-key", received.Headers.Get("apikey"))
		assert.Empty(t, received.Headers.Get("Authorization"))

		var sent testPayload
		require.NoError(t, json.Unmarshal(received.Body, &sent))
		assert.Equal(t, testPayload{Name: "request", Value: 100}, sent)
		assert.Equal(t, testPayload{Name: "response", Value: 200}, result)
	})

	t.Run("2xx以外のステータスはStatusErrorとしてボディごと返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"msg":"User already registered"}`))
		}))
		defer ts.Close()

		client := New(ts.URL)
		err := client.PostJSON(context.Background(), "/auth/v1/signup", testPayload{}, nil)
		require.Error(t, err)

		se, ok := AsStatusError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
		assert.Equal(t, "application/json", se.ContentType)
		assert.JSONEq(t, `{"msg":"User already registered"}`, string(se.Body))
	})

	t.Run("StatusErrorに接続先のContent-Typeが保持されること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`<h1>Service Unavailable</h1>`))
		}))
		defer ts.Close()

		client := New(ts.URL)
		err := client.PostJSON(context.Background(), "/auth/v1/signup", testPayload{}, nil)

		se, ok := AsStatusError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
		assert.Equal(t, "text/html; charset=utf-8", se.ContentType)
		assert.Equal(t, `<h1>Service Unavailable</h1>`, string(se.Body))
	})

	t.Run("resultがnilの場合は空ボディでもエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer ts.Close()

		client := New(ts.URL)
		assert.NoError(t, client.PostJSON(context.Background(), "/auth/v1/logout", nil, nil))
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{invalid json}`))
		}))
		defer ts.Close()

		client := New(ts.URL)
		var result testPayload
		err := client.PostJSON(context.Background(), "/x", nil, &result)
		require.Error(t, err)
		_, ok := AsStatusError(err)
		assert.False(t, ok)
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client := New("http://127.0.0.1:1")
		err := client.PostJSON(context.Background(), "/x", nil, nil)
		require.Error(t, err)
		_, ok := AsStatusError(err)
		assert.False(t, ok)
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := New(ts.URL)
		assert.Error(t, client.PostJSON(ctx, "/x", nil, nil))
	})

	t.Run("シリアライズできないボディでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client := New("http://127.0.0.1:1")
		assert.Error(t, client.PostJSON(context.Background(), "/x", make(chan int), nil))
	})
}

// TestWithBearerToken はコンテキスト経由のBearerトークン伝播を検証する。
func TestWithBearerToken(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストのトークンがAuthorizationヘッダーで送信されること", func(t *testing.T) {
		t.Parallel()

		var auth string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusNoContent)
		}))
		defer ts.Close()

		client := New(ts.URL)
		ctx := WithBearerToken(context.Background(), "access-123")
		require.NoError(t, client.PostJSON(ctx, "/auth/v1/logout", nil, nil))
		assert.Equal(t, "Bearer access-123", auth)
	})
}
