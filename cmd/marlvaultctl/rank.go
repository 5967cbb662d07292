package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"marlvault/internal/export"
	"marlvault/internal/model"
	"marlvault/internal/rank"
	"marlvault/internal/stats"
	"marlvault/internal/storage"
	vaultapi "marlvault/pkg/marlvault"
)

func runRank(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rank", flag.ContinueOnError)
	inPath := fs.String("in", "", "source: raw quality dir, .npz, or .json")
	vaultPath := fs.String("vault", "", "vault directory (used with --quality)")
	qualityName := fs.String("quality", "", "quality level name (empty selects the first)")
	window := fs.Int("window", 1000, "window length in timesteps")
	stride := fs.Int("stride", 0, "window stride (0 uses half the window length)")
	topK := fs.Int("top", 1, "number of best windows to keep")
	bottomK := fs.Int("bottom", 1, "number of worst windows to keep")
	progression := fs.Int("progression", 0, "emit N evenly spaced window slices instead of best/worst selection")
	outDir := fs.String("out-dir", ".", "directory for window slice archives")
	persist := fs.Bool("persist", false, "persist trajectory and ranking records to the store")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sourcePath, err := resolveSource(*inPath, *vaultPath, *qualityName)
	if err != nil {
		return err
	}
	traj, err := loadTrajectory(ctx, sourcePath)
	if err != nil {
		return err
	}

	base := sliceBaseName(sourcePath, traj.Meta)
	if *progression > 0 {
		return writeProgressionSlices(traj, *window, *progression, *outDir, base, sourcePath)
	}

	effectiveStride := *stride
	if effectiveStride == 0 {
		effectiveStride = rank.DefaultStride(*window)
	}
	ranking, err := rank.Rank(traj.Rewards, rank.Params{
		WindowLength: *window,
		Stride:       effectiveStride,
		TopK:         *topK,
		BottomK:      *bottomK,
	})
	if err != nil {
		return err
	}

	summary := stats.Summarize(ranking.Scores())
	fmt.Printf("ranked source=%s windows=%d window=%d stride=%d\n",
		sourcePath, summary.Count, ranking.WindowLength, ranking.Stride)
	if summary.Count > 0 {
		fmt.Printf("scores mean=%.4f std=%.4f min=%.4f max=%.4f\n",
			summary.Mean, summary.Std, summary.Min, summary.Max)
	}
	for i, w := range ranking.Top {
		fmt.Printf("best rank=%d start=%d end=%d total=%.4f avg=%.4f\n",
			i+1, w.StartIndex, w.EndIndex, w.TotalScore, w.AverageScore)
	}
	for i, w := range ranking.Bottom {
		fmt.Printf("worst rank=%d start=%d end=%d total=%.4f avg=%.4f\n",
			i+1, w.StartIndex, w.EndIndex, w.TotalScore, w.AverageScore)
	}

	if err := writeWindowSlices(traj, ranking.Top, *outDir, base, "BEST", "best reward window"); err != nil {
		return err
	}
	if err := writeWindowSlices(traj, ranking.Bottom, *outDir, base, "WORST", "worst reward window"); err != nil {
		return err
	}

	if !*persist {
		return nil
	}

	client, err := vaultapi.New(vaultapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	imported, err := client.ImportTrajectory(ctx, vaultapi.ImportRequest{Path: sourcePath})
	if err != nil {
		return err
	}
	ranked, err := client.RankTrajectory(ctx, vaultapi.RankRequest{
		TrajectoryID: imported.TrajectoryID,
		WindowLength: *window,
		Stride:       effectiveStride,
		TopK:         *topK,
		BottomK:      *bottomK,
	})
	if err != nil {
		return err
	}
	fmt.Printf("persisted trajectory_id=%s ranking_id=%s store=%s\n",
		imported.TrajectoryID, ranked.RankingID, *storeKind)
	return nil
}

// writeProgressionSlices samples count evenly spaced windows across the
// trajectory and writes each as a slice archive, showing how behavior evolves
// over the recording.
func writeProgressionSlices(traj model.Trajectory, window, count int, outDir, base, sourcePath string) error {
	starts, err := rank.EvenStarts(len(traj.Rewards), window, count)
	if err != nil {
		return err
	}
	fmt.Printf("progression source=%s samples=%d window=%d\n", sourcePath, len(starts), window)

	for i, start := range starts {
		w := rank.WindowAt(traj.Rewards, start, window)
		fmt.Printf("sample rank=%d start=%d end=%d total=%.4f avg=%.4f\n",
			i+1, w.StartIndex, w.EndIndex, w.TotalScore, w.AverageScore)

		slice, err := rank.Slice(traj, w)
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, fmt.Sprintf("%s_PROGRESSION_%02d.json", base, i+1))
		out, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		note := fmt.Sprintf("progression sample %d of %d", i+1, len(starts))
		if err := export.WriteEpisodeJSON(out, slice, note, w); err != nil {
			_ = out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		if err := reportWritten("out", path); err != nil {
			return err
		}
	}
	return nil
}

func writeWindowSlices(traj model.Trajectory, windows []model.RankedWindow, outDir, base, tag, note string) error {
	for i, window := range windows {
		slice, err := rank.Slice(traj, window)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("%s_%s.json", base, tag)
		if i > 0 {
			name = fmt.Sprintf("%s_%s_%d.json", base, tag, i+1)
		}
		path := filepath.Join(outDir, name)
		out, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		if err := export.WriteEpisodeJSON(out, slice, note, window); err != nil {
			_ = out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		if err := reportWritten("out", path); err != nil {
			return err
		}
	}
	return nil
}

// sliceBaseName derives the slice archive prefix from trajectory metadata,
// falling back to the source file name.
func sliceBaseName(sourcePath string, meta model.TrajectoryMeta) string {
	if meta.Scenario != "" {
		base := meta.Scenario
		if meta.Quality != "" {
			base += "_" + meta.Quality
		}
		return base
	}
	base := filepath.Base(sourcePath)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "trajectory"
	}
	return base
}

func runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	inPath := fs.String("in", "", "source: raw quality dir, .npz, or .json")
	vaultPath := fs.String("vault", "", "vault directory (used with --quality)")
	qualityName := fs.String("quality", "", "quality level name (empty selects the first)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" && *vaultPath == "" {
		return errors.New("stats requires --in or --vault")
	}

	sourcePath, err := resolveSource(*inPath, *vaultPath, *qualityName)
	if err != nil {
		return err
	}
	traj, err := loadTrajectory(ctx, sourcePath)
	if err != nil {
		return err
	}

	rewardStats := stats.Trajectory(traj)
	fmt.Printf("source=%s timesteps=%d agents=%d\n", sourcePath, traj.Meta.NTimesteps, traj.Meta.NAgents)
	fmt.Printf("total_reward=%.4f mean_reward=%.4f std_reward=%.4f min_reward=%.4f max_reward=%.4f episodes=%d\n",
		rewardStats.TotalReward, rewardStats.MeanReward, rewardStats.StdReward,
		rewardStats.MinReward, rewardStats.MaxReward, rewardStats.NEpisodes)
	return nil
}
