// Package marlvault is the embedding API for the trajectory toolkit: it wraps
// source loading, window ranking, and the record store behind a single client.
package marlvault

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"marlvault/internal/model"
	"marlvault/internal/rank"
	"marlvault/internal/stats"
	"marlvault/internal/storage"
	"marlvault/internal/trajectory"
)

const defaultDBPath = "marlvault.db"

type Options struct {
	StoreKind string
	DBPath    string
}

type Client struct {
	store storage.Store
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{store: store}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

type ImportRequest struct {
	// Path names a trajectory source: a raw quality directory, an NPZ
	// archive, or a JSON archive.
	Path string
	// TrajectoryID overrides the generated record id.
	TrajectoryID string
}

type ImportSummary struct {
	TrajectoryID string
	Meta         model.TrajectoryMeta
	Stats        model.RewardStats
}

// ImportTrajectory loads a source, persists it as a trajectory record, and
// persists its reward statistics alongside.
func (c *Client) ImportTrajectory(ctx context.Context, req ImportRequest) (ImportSummary, error) {
	if req.Path == "" {
		return ImportSummary{}, errors.New("import requires a source path")
	}

	source, err := trajectory.Open(req.Path)
	if err != nil {
		return ImportSummary{}, err
	}
	traj, err := source.Load(ctx)
	if err != nil {
		return ImportSummary{}, err
	}

	id := req.TrajectoryID
	if id == "" {
		id = uuid.NewString()
	}

	record := model.TrajectoryRecord{
		VersionedRecord: currentVersions(),
		ID:              id,
		Trajectory:      traj,
	}
	if err := c.store.SaveTrajectory(ctx, record); err != nil {
		return ImportSummary{}, fmt.Errorf("save trajectory %s: %w", id, err)
	}

	rewardStats := stats.Trajectory(traj)
	if err := c.store.SaveRewardStats(ctx, id, rewardStats); err != nil {
		return ImportSummary{}, fmt.Errorf("save reward stats %s: %w", id, err)
	}

	return ImportSummary{TrajectoryID: id, Meta: traj.Meta, Stats: rewardStats}, nil
}

func (c *Client) Trajectory(ctx context.Context, id string) (model.TrajectoryRecord, bool, error) {
	return c.store.GetTrajectory(ctx, id)
}

func (c *Client) Trajectories(ctx context.Context) ([]string, error) {
	return c.store.ListTrajectories(ctx)
}

func (c *Client) RewardStats(ctx context.Context, trajectoryID string) (model.RewardStats, bool, error) {
	return c.store.GetRewardStats(ctx, trajectoryID)
}

func (c *Client) Ranking(ctx context.Context, id string) (model.RankingRecord, bool, error) {
	return c.store.GetRanking(ctx, id)
}

type RankRequest struct {
	TrajectoryID string
	WindowLength int
	// Stride defaults to rank.DefaultStride(WindowLength) when zero.
	Stride  int
	TopK    int
	BottomK int
	// RankingID overrides the generated record id.
	RankingID string
}

type RankSummary struct {
	RankingID string
	Ranking   rank.Ranking
}

// RankTrajectory ranks reward windows of a stored trajectory and persists the
// result as a ranking record.
func (c *Client) RankTrajectory(ctx context.Context, req RankRequest) (RankSummary, error) {
	record, ok, err := c.store.GetTrajectory(ctx, req.TrajectoryID)
	if err != nil {
		return RankSummary{}, err
	}
	if !ok {
		return RankSummary{}, fmt.Errorf("trajectory not found: %s", req.TrajectoryID)
	}

	stride := req.Stride
	if stride == 0 {
		stride = rank.DefaultStride(req.WindowLength)
	}
	ranking, err := rank.Rank(record.Trajectory.Rewards, rank.Params{
		WindowLength: req.WindowLength,
		Stride:       stride,
		TopK:         req.TopK,
		BottomK:      req.BottomK,
	})
	if err != nil {
		return RankSummary{}, err
	}

	id := req.RankingID
	if id == "" {
		id = uuid.NewString()
	}
	rankingRecord := model.RankingRecord{
		VersionedRecord: currentVersions(),
		ID:              id,
		TrajectoryID:    req.TrajectoryID,
		WindowLength:    ranking.WindowLength,
		Stride:          ranking.Stride,
		Top:             ranking.Top,
		Bottom:          ranking.Bottom,
	}
	if err := c.store.SaveRanking(ctx, rankingRecord); err != nil {
		return RankSummary{}, fmt.Errorf("save ranking %s: %w", id, err)
	}

	return RankSummary{RankingID: id, Ranking: ranking}, nil
}

func currentVersions() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: storage.CurrentSchemaVersion,
		CodecVersion:  storage.CurrentCodecVersion,
	}
}
