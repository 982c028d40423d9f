package main

import (
	"encoding/json"

	"waitlist_contest/internal/repository"
	"waitlist_contest/internal/service"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rankCmd)
	rankCmd.Flags().Bool("snapshot", false, "Print the current ranking snapshot without recalculating")
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Run the final ranking",
	Long: `Recalculate final points and ranks for every user.
With REDIS_ADDR set the run shares the server's lock, so it refuses to start
while a ranking triggered through the admin API is still in progress.`,
	RunE: runRank,
}

func runRank(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer pool.Close()

	store, closeStore := openCache(cfg)
	defer closeStore()

	audit := service.NewAuditService(repository.NewAuditRepository(pool))
	svc := service.NewRankingService(repository.NewRankingRepository(pool), store, cfg.Rewards, audit, nil)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if snap, _ := cmd.Flags().GetBool("snapshot"); snap {
		s, err := svc.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		return enc.Encode(s)
	}

	res, err := svc.Run(cmd.Context())
	if err != nil {
		return err
	}
	return enc.Encode(res)
}
