package main

import (
	"encoding/json"

	"waitlist_contest/internal/repository"
	"waitlist_contest/internal/service"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Retry referral credits that failed during verification",
	Long: `Re-run the referral award for every verified, referred user that has no
referral event recorded. Awards are idempotent, so the command is safe to
repeat and to run while the server is live.`,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer pool.Close()

	audit := service.NewAuditService(repository.NewAuditRepository(pool))
	svc := service.NewReferralService(repository.NewReferralRepository(pool), cfg.Rewards, cfg.AwardWeights, audit, nil)

	res, err := svc.Reconcile(cmd.Context())
	if err != nil {
		return err
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
}
