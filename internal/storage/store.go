package storage

import (
	"context"

	"marlvault/internal/model"
)

// Store defines persistence operations for converted trajectories and their
// derived analysis records.
type Store interface {
	Init(ctx context.Context) error
	SaveTrajectory(ctx context.Context, record model.TrajectoryRecord) error
	GetTrajectory(ctx context.Context, id string) (model.TrajectoryRecord, bool, error)
	ListTrajectories(ctx context.Context) ([]string, error)
	SaveRanking(ctx context.Context, record model.RankingRecord) error
	GetRanking(ctx context.Context, id string) (model.RankingRecord, bool, error)
	SaveRewardStats(ctx context.Context, trajectoryID string, stats model.RewardStats) error
	GetRewardStats(ctx context.Context, trajectoryID string) (model.RewardStats, bool, error)
}
