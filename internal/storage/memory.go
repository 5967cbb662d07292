package storage

import (
	"context"
	"sort"
	"sync"

	"marlvault/internal/model"
)

type MemoryStore struct {
	mu           sync.RWMutex
	trajectories map[string]model.TrajectoryRecord
	rankings     map[string]model.RankingRecord
	stats        map[string]model.RewardStats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trajectories = make(map[string]model.TrajectoryRecord)
	s.rankings = make(map[string]model.RankingRecord)
	s.stats = make(map[string]model.RewardStats)
	return nil
}

func (s *MemoryStore) SaveTrajectory(_ context.Context, record model.TrajectoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trajectories[record.ID] = record
	return nil
}

func (s *MemoryStore) GetTrajectory(_ context.Context, id string) (model.TrajectoryRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.trajectories[id]
	return record, ok, nil
}

func (s *MemoryStore) ListTrajectories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.trajectories))
	for id := range s.trajectories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) SaveRanking(_ context.Context, record model.RankingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Top = append([]model.RankedWindow(nil), record.Top...)
	record.Bottom = append([]model.RankedWindow(nil), record.Bottom...)
	s.rankings[record.ID] = record
	return nil
}

func (s *MemoryStore) GetRanking(_ context.Context, id string) (model.RankingRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.rankings[id]
	if !ok {
		return model.RankingRecord{}, false, nil
	}
	record.Top = append([]model.RankedWindow(nil), record.Top...)
	record.Bottom = append([]model.RankedWindow(nil), record.Bottom...)
	return record, true, nil
}

func (s *MemoryStore) SaveRewardStats(_ context.Context, trajectoryID string, stats model.RewardStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats[trajectoryID] = stats
	return nil
}

func (s *MemoryStore) GetRewardStats(_ context.Context, trajectoryID string) (model.RewardStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.stats[trajectoryID]
	return stats, ok, nil
}
