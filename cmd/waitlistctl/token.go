package main

import (
	"fmt"
	"os"
	"time"

	"waitlist_contest/internal/service"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	tokenCmd.Flags().String("subject", "operator", "Subject recorded in admin audit entries")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin bearer token signed with ADMIN_JWT_SECRET",
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET not set")
	}
	ttl, _ := cmd.Flags().GetDuration("ttl")
	subject, _ := cmd.Flags().GetString("subject")
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	tok, err := service.NewAdminTokens(secret).Issue(subject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
