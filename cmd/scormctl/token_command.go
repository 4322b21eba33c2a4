package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var userFlag string
	var name string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := uuid.New()
			if s := strings.TrimSpace(userFlag); s != "" {
				id, err := uuid.Parse(s)
				if err != nil || id == uuid.Nil {
					return fmt.Errorf("--user must be a uuid")
				}
				userID = id
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			tok, err := a.Services.Auth.SignAccessToken(userID, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "Learner id (random when empty)")
	cmd.Flags().StringVar(&name, "name", "", "Learner display name")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
