package runsignal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Signal coordinates campaign runs through Redis: a stop marker that the
// dialer polls between contacts, and a per-campaign run lock that keeps two
// processes from running (and finalizing) the same campaign.
type Signal struct {
	client  *redis.Client
	lockTTL time.Duration
}

// New constructs a run signal helper.
func New(client *redis.Client, lockTTL time.Duration) *Signal {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &Signal{client: client, lockTTL: lockTTL}
}

// RequestStop sets the stop marker for a campaign. The dialer never calls
// this itself; it only observes the marker.
func (s *Signal) RequestStop(ctx context.Context, campaignID uuid.UUID) error {
	if err := s.client.Set(ctx, s.stopKey(campaignID), "1", s.lockTTL).Err(); err != nil {
		return fmt.Errorf("runsignal: set stop marker: %w", err)
	}
	return nil
}

// StopRequested reports whether the stop marker is present. A query failure
// reads as "keep running": the marker's absence is the default state.
func (s *Signal) StopRequested(ctx context.Context, campaignID uuid.UUID) bool {
	n, err := s.client.Exists(ctx, s.stopKey(campaignID)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// ClearStop removes a stale marker from a previous run.
func (s *Signal) ClearStop(ctx context.Context, campaignID uuid.UUID) error {
	if err := s.client.Del(ctx, s.stopKey(campaignID)).Err(); err != nil {
		return fmt.Errorf("runsignal: clear stop marker: %w", err)
	}
	return nil
}

// AcquireRun takes the campaign run lock. It returns false when another
// runner already holds it.
func (s *Signal) AcquireRun(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.lockKey(campaignID), "1", s.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("runsignal: acquire run lock: %w", err)
	}
	return ok, nil
}

// ReleaseRun drops the campaign run lock.
func (s *Signal) ReleaseRun(ctx context.Context, campaignID uuid.UUID) error {
	if err := s.client.Del(ctx, s.lockKey(campaignID)).Err(); err != nil {
		return fmt.Errorf("runsignal: release run lock: %w", err)
	}
	return nil
}

func (s *Signal) stopKey(campaignID uuid.UUID) string {
	return fmt.Sprintf("simpledialer:stop:%s", campaignID.String())
}

func (s *Signal) lockKey(campaignID uuid.UUID) string {
	return fmt.Sprintf("simpledialer:run:%s", campaignID.String())
}
