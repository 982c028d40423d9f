package main

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/repository"
	"waitlist_contest/internal/service"

	"github.com/dchest/uniuri"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Int("n", 50, "Number of users to create")
	seedCmd.Flags().Float64("referred", 0.7, "Share of users who join through an existing referral code")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate a development database with verified users and referrals",
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	n, _ := cmd.Flags().GetInt("n")
	share, _ := cmd.Flags().GetFloat64("referred")
	if n <= 0 {
		return fmt.Errorf("--n must be positive")
	}

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

	ctx := cmd.Context()
	users := repository.NewUserRepository(pool)
	audit := service.NewAuditService(repository.NewAuditRepository(pool))
	referrals := service.NewReferralService(repository.NewReferralRepository(pool), cfg.Rewards, cfg.AwardWeights, audit, nil)
	otp := service.NewOTPService(store, service.LogSender{}, cfg.OTPTTL)
	signup := service.NewSignupService(users, otp, referrals, cfg.Rewards, audit)

	var codes []string
	awarded := 0
	for i := 0; i < n; i++ {
		req := service.JoinRequest{
			Email: fmt.Sprintf("seed-%s@example.test", strings.ToLower(uniuri.NewLen(10))),
			Role:  string(domain.Roles[rand.Intn(len(domain.Roles))]),
		}
		if len(codes) > 0 && rand.Float64() < share {
			req.ReferralCode = codes[rand.Intn(len(codes))]
		}

		u, err := signup.Join(ctx, req)
		if err != nil {
			return fmt.Errorf("join %s: %w", req.Email, err)
		}
		codes = append(codes, u.ReferralCode)

		if _, err := users.MarkVerified(ctx, u.ID, time.Now()); err != nil {
			return fmt.Errorf("verify %s: %w", u.Email, err)
		}
		if u.ReferredBy == nil {
			continue
		}
		outcome, err := referrals.Award(ctx, *u.ReferredBy, u.ID, u.Role)
		if err != nil {
			return fmt.Errorf("award %s: %w", u.Email, err)
		}
		if outcome == service.AwardInserted {
			awarded++
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d referral awards\n", n, awarded)
	return nil
}
