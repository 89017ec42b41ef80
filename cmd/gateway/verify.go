package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/nao1215/sessiongate/pkg/authtoken"
)

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "アクセストークンを公開鍵で検証してクレームを表示する",
		ArgsUsage: "<access-token>",
		Action:    runVerify,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "jwk",
				Usage:   "検証に使う公開鍵（JWK形式のJSON）",
				Sources: cli.EnvVars("IDP_PUBLIC_JWK"),
			},
			&cli.StringFlag{
				Name:    "audience",
				Usage:   "要求するaudクレーム",
				Value:   authtoken.DefaultAudience,
				Sources: cli.EnvVars("IDP_TOKEN_AUDIENCE"),
			},
		},
	}
}

func runVerify(_ context.Context, cmd *cli.Command) error {
	token := cmd.Args().First()
	if token == "" {
		return errors.New("検証するトークンを指定してください")
	}
	key, err := authtoken.ParsePublicJWK([]byte(cmd.String("jwk")))
	if err != nil {
		return fmt.Errorf("公開鍵の読み込みに失敗: %w", err)
	}

	claims, err := authtoken.NewVerifier(key, cmd.String("audience")).Verify(token)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(claims)
}
