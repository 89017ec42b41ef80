package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/nao1215/sessiongate/internal/audit"
)

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:   "audit",
		Usage:  "認証操作の監査ログを新しい順に表示する",
		Action: runAudit,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db",
				Usage:    "監査ログのSQLiteファイル",
				Sources:  cli.EnvVars("AUDIT_DB_PATH"),
				Required: true,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "表示する件数",
				Value:   20,
			},
		},
	}
}

type auditLine struct {
	ID         int64  `json:"id"`
	Kind       string `json:"kind"`
	Email      string `json:"email,omitempty"`
	Outcome    string `json:"outcome"`
	Status     int    `json:"status"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func runAudit(ctx context.Context, cmd *cli.Command) error {
	logger := slog.New(slog.NewJSONHandler(cmd.Root().ErrWriter, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := audit.Open(ctx, cmd.String("db"), logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	events, err := store.Recent(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.Root().Writer)
	for _, e := range events {
		if err := enc.Encode(auditLine{
			ID:         e.ID,
			Kind:       string(e.Kind),
			Email:      e.Email,
			Outcome:    string(e.Outcome),
			Status:     e.Status,
			RemoteAddr: e.RemoteAddr,
			RequestID:  e.RequestID,
			CreatedAt:  e.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		}); err != nil {
			return err
		}
	}
	return nil
}
