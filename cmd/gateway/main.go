// セッションゲートウェイのエントリポイント。
// ブラウザのCookieセッションと外部Identity ProviderのBearerトークンを相互に変換する。
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		logger.Error("コマンドの実行に失敗", "error", err)
		os.Exit(1)
	}
}

// newApp はgatewayコマンドとサブコマンドを組み立てる。
func newApp() *cli.Command {
	return &cli.Command{
		Name:  "gateway",
		Usage: "Cookieセッションと外部Identity Providerを仲介するセッションゲートウェイ",
		Commands: []*cli.Command{
			serveCommand(),
			verifyCommand(),
			auditCommand(),
		},
	}
}
