package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marlvault/internal/export"
	"marlvault/internal/model"
	"marlvault/internal/trajectory"
)

func fixtureTrajectory() model.Trajectory {
	return model.Trajectory{
		Meta: model.TrajectoryMeta{
			Env:        "mamujoco",
			Scenario:   "2halfcheetah",
			Quality:    "Good",
			NTimesteps: 6,
			NAgents:    2,
			ObsDim:     2,
			ActDim:     1,
		},
		Observations: [][][]float64{
			{{0, 1}, {1, 0}}, {{0, 2}, {2, 0}}, {{0, 3}, {3, 0}},
			{{0, 4}, {4, 0}}, {{0, 5}, {5, 0}}, {{0, 6}, {6, 0}},
		},
		Actions: [][][]float64{
			{{0.1}, {0.2}}, {{0.3}, {0.4}}, {{0.5}, {0.6}},
			{{0.7}, {0.8}}, {{0.9}, {1.0}}, {{1.1}, {1.2}},
		},
		Rewards: [][]float64{
			{1, 1}, {1, 1}, {5, 5}, {5, 5}, {1, 1}, {1, 1},
		},
		Terminals: [][]bool{
			{false, false}, {false, false}, {true, true},
			{false, false}, {false, false}, {true, true},
		},
		Truncations: [][]bool{
			{false, false}, {false, false}, {false, false},
			{false, false}, {false, false}, {false, false},
		},
	}
}

func writeFixtureDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Good")
	if err := trajectory.WriteRaw(dir, fixtureTrajectory()); err != nil {
		t.Fatalf("write raw fixture: %v", err)
	}
	return dir
}

func TestRunRequiresCommand(t *testing.T) {
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected usage error")
	}
	if err := run(context.Background(), []string{"bogus"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRunConvertProducesArchive(t *testing.T) {
	dir := writeFixtureDir(t)
	outPath := filepath.Join(t.TempDir(), "out.json")

	err := run(context.Background(), []string{
		"convert", "--in", dir, "--out", outPath, "--max-steps", "0",
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var archive export.Archive
	if err := json.Unmarshal(data, &archive); err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if len(archive.Trajectories) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(archive.Trajectories))
	}
	if archive.Statistics == nil || archive.Statistics.NEpisodes != 2 {
		t.Fatalf("unexpected statistics: %+v", archive.Statistics)
	}
}

func TestRunExportNPZRoundTrip(t *testing.T) {
	dir := writeFixtureDir(t)
	outPath := filepath.Join(t.TempDir(), "out.npz")

	err := run(context.Background(), []string{
		"export-npz", "--in", dir, "--out", outPath,
	})
	if err != nil {
		t.Fatalf("export-npz: %v", err)
	}

	source, err := trajectory.Open(outPath)
	if err != nil {
		t.Fatalf("open npz: %v", err)
	}
	loaded, err := source.Load(context.Background())
	if err != nil {
		t.Fatalf("load npz: %v", err)
	}
	if loaded.Meta.NTimesteps != 6 || loaded.Meta.NAgents != 2 {
		t.Fatalf("unexpected meta: %+v", loaded.Meta)
	}
}

func TestRunActionsWritesAllFormats(t *testing.T) {
	dir := writeFixtureDir(t)
	outBase := filepath.Join(t.TempDir(), "actions.csv")

	err := run(context.Background(), []string{
		"actions", "--in", dir, "--out", outBase,
	})
	if err != nil {
		t.Fatalf("actions: %v", err)
	}

	base := strings.TrimSuffix(outBase, ".csv")
	for _, ext := range []string{".csv", ".json", ".txt"} {
		if _, err := os.Stat(base + ext); err != nil {
			t.Fatalf("missing %s output: %v", ext, err)
		}
	}

	data, err := os.ReadFile(base + ".csv")
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !strings.HasPrefix(string(data), "timestep,episode,") {
		t.Fatalf("unexpected csv header: %q", strings.SplitN(string(data), "\n", 2)[0])
	}
}

func TestRunRankWritesSlices(t *testing.T) {
	dir := writeFixtureDir(t)
	outDir := t.TempDir()

	err := run(context.Background(), []string{
		"rank", "--in", dir, "--window", "2", "--stride", "2", "--out-dir", outDir,
	})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	bestPath := filepath.Join(outDir, "2halfcheetah_Good_BEST.json")
	worstPath := filepath.Join(outDir, "2halfcheetah_Good_WORST.json")
	for _, path := range []string{bestPath, worstPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing slice %s: %v", path, err)
		}
	}

	data, err := os.ReadFile(bestPath)
	if err != nil {
		t.Fatalf("read best slice: %v", err)
	}
	var archive export.Archive
	if err := json.Unmarshal(data, &archive); err != nil {
		t.Fatalf("decode best slice: %v", err)
	}
	// Per-step agent means are 1, 1, 5, 5, 1, 1; windows [0,2) [2,4) [4,6)
	// score 2, 10, 2. The best one starts at 2.
	if archive.Metadata.OriginalStartStep == nil || *archive.Metadata.OriginalStartStep != 2 {
		t.Fatalf("unexpected best window start: %+v", archive.Metadata.OriginalStartStep)
	}
	if archive.Metadata.CumulativeReward == nil || *archive.Metadata.CumulativeReward != 10 {
		t.Fatalf("unexpected best window reward: %+v", archive.Metadata.CumulativeReward)
	}
	if len(archive.Trajectories) != 2 {
		t.Fatalf("expected 2 sliced steps, got %d", len(archive.Trajectories))
	}
}

func TestRunRankProgressionSampling(t *testing.T) {
	dir := writeFixtureDir(t)
	outDir := t.TempDir()

	err := run(context.Background(), []string{
		"rank", "--in", dir, "--window", "2", "--progression", "3", "--out-dir", outDir,
	})
	if err != nil {
		t.Fatalf("rank progression: %v", err)
	}

	// EvenStarts over 6 timesteps with window 2 and 3 samples lands on
	// starts 0, 2, 4.
	wantStarts := []int{0, 2, 4}
	for i, wantStart := range wantStarts {
		path := filepath.Join(outDir, fmt.Sprintf("2halfcheetah_Good_PROGRESSION_%02d.json", i+1))
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read sample %d: %v", i+1, err)
		}
		var archive export.Archive
		if err := json.Unmarshal(data, &archive); err != nil {
			t.Fatalf("decode sample %d: %v", i+1, err)
		}
		if archive.Metadata.OriginalStartStep == nil || *archive.Metadata.OriginalStartStep != wantStart {
			t.Fatalf("sample %d: start %+v, want %d", i+1, archive.Metadata.OriginalStartStep, wantStart)
		}
		if len(archive.Trajectories) != 2 {
			t.Fatalf("sample %d: %d steps, want 2", i+1, len(archive.Trajectories))
		}
	}
}

func TestRunRankRejectsBadWindow(t *testing.T) {
	dir := writeFixtureDir(t)

	err := run(context.Background(), []string{
		"rank", "--in", dir, "--window", "0", "--out-dir", t.TempDir(),
	})
	if err == nil {
		t.Fatal("expected invalid parameter error")
	}
}

func TestRunImportAndShow(t *testing.T) {
	dir := writeFixtureDir(t)

	err := run(context.Background(), []string{
		"import", "--in", dir, "--id", "fixture", "--store", "memory",
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	// The memory store does not outlive the command; show against a fresh
	// memory store reports not-found.
	err = run(context.Background(), []string{
		"show", "--trajectory-id", "fixture", "--store", "memory",
	})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestRunStatsReportsEpisodes(t *testing.T) {
	dir := writeFixtureDir(t)
	if err := run(context.Background(), []string{"stats", "--in", dir}); err != nil {
		t.Fatalf("stats: %v", err)
	}
}

func TestRunInspectListsQualities(t *testing.T) {
	dir := writeFixtureDir(t)
	if err := run(context.Background(), []string{"inspect", "--vault", filepath.Dir(dir)}); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if err := run(context.Background(), []string{"inspect"}); err == nil {
		t.Fatal("expected missing --vault error")
	}
}
