package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/yakoovad/hackreg/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin token for the /admin endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				ttl = a.cfg.Auth.TokenTTL
			}

			signer, err := auth.NewSigner(a.cfg.Auth.Secret, ttl)
			if err != nil {
				return err
			}

			token, err := signer.GenerateToken(auth.TokenTypeAdmin, subject)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: auth.token_ttl)")

	return cmd
}
