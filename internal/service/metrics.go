package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReferralAwards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_awards_total",
			Help: "Referral award attempts by outcome",
		},
		[]string{"result"},
	)
	Signups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_signups_total",
			Help: "Waitlist signups by role and early-bird grant",
		},
		[]string{"role", "early_bird"},
	)
	RankingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_runs_total",
			Help: "Final ranking runs by status",
		},
		[]string{"status"},
	)
	RankingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_run_duration_seconds",
			Help:    "Duration of successful final ranking runs",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ReferralAwards)
	prometheus.MustRegister(Signups)
	prometheus.MustRegister(RankingRuns)
	prometheus.MustRegister(RankingDuration)
}
