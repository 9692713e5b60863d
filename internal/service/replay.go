package service

import (
	"context"
	"time"

	"github.com/iliyamo/car-rental/internal/config"
	"github.com/iliyamo/car-rental/internal/logging"
	"github.com/iliyamo/car-rental/internal/model"
)

// ReplayPolicy decides what happens when an already rotated (revoked)
// refresh token is presented again. The caller always receives an
// AuthenticationError; the policy only controls side effects.
type ReplayPolicy interface {
	OnReplay(ctx context.Context, tokens TokenStore, replayed model.RefreshToken, now time.Time) error
}

// RejectReplay fails the request and does nothing else.
type RejectReplay struct{}

func (RejectReplay) OnReplay(ctx context.Context, _ TokenStore, replayed model.RefreshToken, _ time.Time) error {
	logging.FromContext(ctx).Warn("refresh token replay rejected",
		"user_id", replayed.UserID, "family_id", replayed.FamilyID)
	return nil
}

// RevokeFamilyOnReplay treats a replay as theft and revokes every active
// token issued from the same login, forcing the legitimate holder and the
// attacker alike to authenticate again.
type RevokeFamilyOnReplay struct{}

func (RevokeFamilyOnReplay) OnReplay(ctx context.Context, tokens TokenStore, replayed model.RefreshToken, now time.Time) error {
	n, err := tokens.RevokeFamily(ctx, replayed.FamilyID, now)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Warn("refresh token replay detected, family revoked",
		"user_id", replayed.UserID, "family_id", replayed.FamilyID, "revoked", n)
	return nil
}

// NewReplayPolicy maps a REFRESH_REUSE_POLICY value onto a policy.
func NewReplayPolicy(name string) ReplayPolicy {
	if name == config.ReuseReject {
		return RejectReplay{}
	}
	return RevokeFamilyOnReplay{}
}
