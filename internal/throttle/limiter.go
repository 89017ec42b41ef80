// Package throttle はクライアントIPごとのログイン試行回数を制限する。
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix はRedisに置くカウンタのキー接頭辞。
const keyPrefix = "sessiongate:login:"

// Limiter は試行を許可するかどうかを判定する。
type Limiter interface {
	// Allow はkeyの試行を1回数え、上限以内であればtrueを返す。
	Allow(ctx context.Context, key string) (bool, error)
}

// incrWithWindow はカウンタを加算し、有効期限が無ければwindow（ミリ秒）を設定する。
// 1つのスクリプトで実行するため加算と有効期限の設定は分離しない。
// 有効期限の無いキーが残っていても次の試行で期限が付く。
var incrWithWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisLimiter はRedisの固定ウィンドウカウンタで試行回数を数える。
// 複数のゲートウェイプロセスで同じRedisを共有すれば、制限も共有される。
type RedisLimiter struct {
	client redis.Scripter
	limit  int64
	window time.Duration
}

// NewRedisLimiter はwindowあたりlimit回までの試行を許可するLimiterを生成する。
func NewRedisLimiter(client redis.Scripter, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: int64(limit), window: window}
}

// Allow はkeyのカウンタを増やし、ウィンドウ内の試行回数が上限以内かを返す。
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := incrWithWindow.Run(ctx, l.client, []string{keyPrefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("試行回数の加算に失敗: %w", err)
	}
	return count <= l.limit, nil
}

// NewRedisClient はredis://形式のURLからクライアントを生成し、疎通を確認する。
// 疎通確認に失敗してもクライアントは返す。呼び出し側はエラーをログに出して続行できる。
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URLの解析に失敗: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("Redisへの疎通確認に失敗: %w", err)
	}
	return client, nil
}
