package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrSelfReferral        = errors.New("cannot refer yourself")

	ErrInvalidCode     = errors.New("invalid or expired verification code")
	ErrAlreadyVerified = errors.New("already verified")

	ErrRankingInProgress = errors.New("ranking run already in progress")
)
