// Package audit は認証操作（サインアップ、ログイン、ログアウト）の監査ログをSQLiteに記録する。
//
// パスワードとトークンは記録しない。監査ログへの書き込み失敗がレスポンスに
// 影響しないよう、呼び出し側はエラーをログに出すだけにする。
package audit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nao1215/sessiongate/pkg/migration"
)

//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// Kind は認証操作の種類。
type Kind string

// 認証操作の種類。
const (
	KindSignUp Kind = "signup"
	KindLogin  Kind = "login"
	KindLogout Kind = "logout"
)

// Outcome は認証操作の結果。
type Outcome string

// 認証操作の結果。
const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeThrottled Outcome = "throttled"
)

// Event は1件の監査ログ。
type Event struct {
	ID         int64
	Kind       Kind
	Email      string
	Outcome    Outcome
	Status     int
	RemoteAddr string
	RequestID  string
	CreatedAt  time.Time
}

// Store はSQLiteに監査ログを保存する。
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open はpathのSQLiteファイルを開き、スキーマを最新にしたStoreを返す。
// pathに":memory:"を指定するとインメモリデータベースを使う。
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("監査ログDBの接続に失敗: %w", err)
	}
	// SQLiteの書き込みは直列化されるため接続は1本に絞る
	db.SetMaxOpenConns(1)

	if _, err := migration.Run(ctx, db, migrationsFS, "migrations", logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("監査ログDBのマイグレーションに失敗: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Record は監査ログを1件追加する。CreatedAtが未設定の場合は現在時刻を使う。
func (s *Store) Record(ctx context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_events (kind, email, outcome, status, remote_addr, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(e.Kind), e.Email, string(e.Outcome), e.Status, e.RemoteAddr, e.RequestID,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("監査ログの記録に失敗: %w", err)
	}
	return nil
}

// Recent は新しい順に最大limit件の監査ログを返す。
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, email, outcome, status, remote_addr, request_id, created_at
		FROM auth_events
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("監査ログの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			e         Event
			kind      string
			outcome   string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Email, &outcome, &e.Status, &e.RemoteAddr, &e.RequestID, &createdAt); err != nil {
			return nil, fmt.Errorf("監査ログの読み取りに失敗: %w", err)
		}
		e.Kind = Kind(kind)
		e.Outcome = Outcome(outcome)
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("作成日時の解析に失敗: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}
