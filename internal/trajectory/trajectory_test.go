package trajectory

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"marlvault/internal/export"
	"marlvault/internal/model"
)

func sampleTrajectory() model.Trajectory {
	return model.Trajectory{
		Meta: model.TrajectoryMeta{
			Env:        "gymnasium_mamujoco",
			Scenario:   "2halfcheetah",
			Quality:    "Replay",
			NTimesteps: 2,
			NAgents:    2,
			ObsDim:     3,
			ActDim:     1,
			StateDim:   2,
		},
		Observations: [][][]float64{
			{{1, 2, 3}, {4, 5, 6}},
			{{7, 8, 9}, {10, 11, 12}},
		},
		Actions: [][][]float64{
			{{0.1}, {0.2}},
			{{0.3}, {0.4}},
		},
		Rewards: [][]float64{
			{1, 2},
			{3, 4},
		},
		Terminals: [][]bool{
			{false, false},
			{true, false},
		},
		Truncations: [][]bool{
			{false, false},
			{false, false},
		},
		States: [][]float64{
			{0.5, 0.6},
			{0.7, 0.8},
		},
	}
}

func TestValidateAcceptsConsistentTrajectory(t *testing.T) {
	if err := Validate(sampleTrajectory()); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejectsShapeDeviations(t *testing.T) {
	broken := sampleTrajectory()
	broken.Observations[1][0] = []float64{7, 8} // dropped a dimension
	if err := Validate(broken); err == nil {
		t.Fatal("expected observation dim error")
	}

	broken = sampleTrajectory()
	broken.Rewards[0] = []float64{1} // missing an agent
	if err := Validate(broken); err == nil {
		t.Fatal("expected reward agent-count error")
	}

	broken = sampleTrajectory()
	broken.Meta.NTimesteps = 5
	if err := Validate(broken); err == nil {
		t.Fatal("expected timestep-count mismatch error")
	}
}

func TestRawRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Replay")
	want := sampleTrajectory()

	if err := WriteRaw(dir, want); err != nil {
		t.Fatalf("write raw: %v", err)
	}

	loaded, err := NewRawSource(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if !reflect.DeepEqual(loaded, want) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", loaded, want)
	}
}

func TestRawSourceRejectsTruncatedArrays(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Replay")
	if err := WriteRaw(dir, sampleTrajectory()); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	rewardsPath := filepath.Join(dir, "d", "rewards.f64")
	if err := os.WriteFile(rewardsPath, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("truncate rewards: %v", err)
	}
	if _, err := NewRawSource(dir).Load(context.Background()); err == nil {
		t.Fatal("expected size-mismatch error")
	}
}

func TestOpenPicksSourceByPath(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	want := sampleTrajectory()

	rawDir := filepath.Join(tmp, "Replay")
	if err := WriteRaw(rawDir, want); err != nil {
		t.Fatalf("write raw: %v", err)
	}

	jsonPath := filepath.Join(tmp, "archive.json")
	jsonFile, err := os.Create(jsonPath)
	if err != nil {
		t.Fatalf("create json: %v", err)
	}
	if err := export.WriteJSON(jsonFile, want, export.JSONOptions{}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := jsonFile.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	npzPath := filepath.Join(tmp, "archive.npz")
	npzFile, err := os.Create(npzPath)
	if err != nil {
		t.Fatalf("create npz: %v", err)
	}
	if err := export.WriteNPZ(npzFile, want); err != nil {
		t.Fatalf("write npz: %v", err)
	}
	if err := npzFile.Close(); err != nil {
		t.Fatalf("close npz: %v", err)
	}

	for _, path := range []string{rawDir, jsonPath, npzPath} {
		source, err := Open(path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		loaded, err := source.Load(ctx)
		if err != nil {
			t.Fatalf("load %s: %v", path, err)
		}
		if loaded.Meta.NTimesteps != want.Meta.NTimesteps || loaded.Meta.NAgents != want.Meta.NAgents {
			t.Fatalf("%s: unexpected meta %+v", path, loaded.Meta)
		}
		if !reflect.DeepEqual(loaded.Rewards, want.Rewards) {
			t.Fatalf("%s: rewards mismatch %v", path, loaded.Rewards)
		}
	}

	if _, err := Open(filepath.Join(tmp, "missing.json")); err == nil {
		t.Fatal("expected error for missing path")
	}
}
