package main

import (
	"fmt"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/app"
	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/spf13/cobra"
)

// token: выпуск токена для локальной разработки тем же ключом, что проверяет релей.
func newTokenCmd() *cobra.Command {
	var (
		userID   string
		username string
		avatar   string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if ttl > 0 {
				cfg.Auth.JWT.TokenTTL = ttl
			}

			signer, err := app.NewSigner(cfg.Auth.JWT)
			if err != nil {
				return err
			}
			tok, err := signer.Sign(domain.Identity{UserID: userID, Username: username, Avatar: avatar}, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.Flags().StringVar(&avatar, "avatar", "", "avatar url")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.jwt.tokenTTL)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
