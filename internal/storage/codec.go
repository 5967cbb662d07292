package storage

import (
	"encoding/json"
	"errors"

	"marlvault/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeTrajectoryRecord(record model.TrajectoryRecord) ([]byte, error) {
	return json.Marshal(record)
}

func DecodeTrajectoryRecord(data []byte) (model.TrajectoryRecord, error) {
	var record model.TrajectoryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.TrajectoryRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.TrajectoryRecord{}, err
	}
	return record, nil
}

func EncodeRankingRecord(record model.RankingRecord) ([]byte, error) {
	return json.Marshal(record)
}

func DecodeRankingRecord(data []byte) (model.RankingRecord, error) {
	var record model.RankingRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.RankingRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.RankingRecord{}, err
	}
	return record, nil
}

func EncodeRewardStats(stats model.RewardStats) ([]byte, error) {
	return json.Marshal(stats)
}

func DecodeRewardStats(data []byte) (model.RewardStats, error) {
	var stats model.RewardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return model.RewardStats{}, err
	}
	return stats, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
