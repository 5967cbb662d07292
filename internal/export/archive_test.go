package export

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"

	"marlvault/internal/model"
)

func sampleTrajectory() model.Trajectory {
	return model.Trajectory{
		Meta: model.TrajectoryMeta{
			Env:        "gymnasium_mamujoco",
			Scenario:   "2halfcheetah",
			Quality:    "Replay",
			NTimesteps: 3,
			NAgents:    2,
			ObsDim:     2,
			ActDim:     1,
			StateDim:   2,
		},
		Observations: [][][]float64{
			{{0.1, 0.2}, {0.3, 0.4}},
			{{1.1, 1.2}, {1.3, 1.4}},
			{{2.1, 2.2}, {2.3, 2.4}},
		},
		Actions: [][][]float64{
			{{0.5}, {-0.5}},
			{{0.6}, {-0.6}},
			{{0.7}, {-0.7}},
		},
		Rewards: [][]float64{
			{1, 2},
			{3, 4},
			{5, 6},
		},
		Terminals: [][]bool{
			{false, false},
			{false, false},
			{true, true},
		},
		Truncations: [][]bool{
			{false, false},
			{false, false},
			{false, false},
		},
		States: [][]float64{
			{9, 9},
			{8, 8},
			{7, 7},
		},
	}
}

func TestWriteReadJSONRoundTrip(t *testing.T) {
	trajectory := sampleTrajectory()

	var buf bytes.Buffer
	if err := WriteJSON(&buf, trajectory, JSONOptions{}); err != nil {
		t.Fatalf("write json: %v", err)
	}

	loaded, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	if !reflect.DeepEqual(loaded, trajectory) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", loaded, trajectory)
	}
}

func TestWriteJSONIncludesStatistics(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleTrajectory(), JSONOptions{}); err != nil {
		t.Fatalf("write json: %v", err)
	}

	var archive Archive
	if err := json.Unmarshal(buf.Bytes(), &archive); err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if archive.Statistics == nil {
		t.Fatal("expected statistics block")
	}
	if archive.Statistics.TotalReward != 21 || archive.Statistics.NEpisodes != 1 {
		t.Fatalf("unexpected statistics: %+v", archive.Statistics)
	}
	if archive.Metadata.NTimesteps != 3 || archive.Metadata.Quality != "Replay" {
		t.Fatalf("unexpected metadata: %+v", archive.Metadata)
	}
}

func TestWriteJSONCapsSteps(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleTrajectory(), JSONOptions{MaxSteps: 2}); err != nil {
		t.Fatalf("write json: %v", err)
	}

	var archive Archive
	if err := json.Unmarshal(buf.Bytes(), &archive); err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if len(archive.Trajectories) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(archive.Trajectories))
	}
	// The emitted metadata reflects what was actually written.
	if archive.Metadata.NTimesteps != 2 {
		t.Fatalf("metadata step count = %d, want 2", archive.Metadata.NTimesteps)
	}
}

func TestWriteEpisodeJSONCarriesProvenance(t *testing.T) {
	slice := sampleTrajectory()
	window := model.RankedWindow{StartIndex: 1500, EndIndex: 1503, TotalScore: 42.5, AverageScore: 42.5 / 3}

	var buf bytes.Buffer
	if err := WriteEpisodeJSON(&buf, slice, "Best episode: steps 1500-1503", window); err != nil {
		t.Fatalf("write episode json: %v", err)
	}

	var archive Archive
	if err := json.Unmarshal(buf.Bytes(), &archive); err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if archive.Metadata.Note == "" {
		t.Fatal("expected provenance note")
	}
	if archive.Metadata.OriginalStartStep == nil || *archive.Metadata.OriginalStartStep != 1500 {
		t.Fatalf("unexpected original start: %+v", archive.Metadata.OriginalStartStep)
	}
	if archive.Metadata.CumulativeReward == nil || *archive.Metadata.CumulativeReward != 42.5 {
		t.Fatalf("unexpected cumulative reward: %+v", archive.Metadata.CumulativeReward)
	}
	if len(archive.Trajectories) != 3 {
		t.Fatalf("expected full slice, got %d steps", len(archive.Trajectories))
	}
}
