package trajectory

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"marlvault/internal/model"
	"marlvault/internal/vault"
)

// Raw quality-directory layout: the metadata.json sidecar next to flat
// little-endian arrays under d/. Float64 arrays use .f64 files, boolean
// arrays one byte per value in .u8 files.
const (
	rawObservations = "observations.f64"
	rawActions      = "actions.f64"
	rawRewards      = "rewards.f64"
	rawTerminals    = "terminals.u8"
	rawTruncations  = "truncations.u8"
	rawState        = "state.f64"
)

// RawSource loads a trajectory from a raw quality directory. It stands in
// for the external vault engine: same directory probing, same sidecar, flat
// readable arrays instead of the engine's chunked store.
type RawSource struct {
	Dir string
}

func NewRawSource(dir string) *RawSource {
	return &RawSource{Dir: dir}
}

func (s *RawSource) Load(_ context.Context) (model.Trajectory, error) {
	sidecar, err := vault.ReadSidecar(s.Dir)
	if err != nil {
		return model.Trajectory{}, err
	}
	meta, err := vault.MetaFromSidecar(sidecar)
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("sidecar %s: %w", s.Dir, err)
	}

	dataDir := filepath.Join(s.Dir, vault.DataDir)
	trajectory := model.Trajectory{Meta: meta}

	obs, err := readFloat64File(filepath.Join(dataDir, rawObservations), meta.NTimesteps*meta.NAgents*meta.ObsDim)
	if err != nil {
		return model.Trajectory{}, err
	}
	trajectory.Observations = reshape3(obs, meta.NTimesteps, meta.NAgents, meta.ObsDim)

	act, err := readFloat64File(filepath.Join(dataDir, rawActions), meta.NTimesteps*meta.NAgents*meta.ActDim)
	if err != nil {
		return model.Trajectory{}, err
	}
	trajectory.Actions = reshape3(act, meta.NTimesteps, meta.NAgents, meta.ActDim)

	rew, err := readFloat64File(filepath.Join(dataDir, rawRewards), meta.NTimesteps*meta.NAgents)
	if err != nil {
		return model.Trajectory{}, err
	}
	trajectory.Rewards = reshape2(rew, meta.NTimesteps, meta.NAgents)

	for _, flags := range []struct {
		file   string
		target *[][]bool
	}{
		{rawTerminals, &trajectory.Terminals},
		{rawTruncations, &trajectory.Truncations},
	} {
		path := filepath.Join(dataDir, flags.file)
		if _, err := os.Stat(path); err != nil {
			continue // optional; absent means no flags recorded
		}
		values, err := readBoolFile(path, meta.NTimesteps*meta.NAgents)
		if err != nil {
			return model.Trajectory{}, err
		}
		*flags.target = reshapeBools(values, meta.NTimesteps, meta.NAgents)
	}

	if meta.StateDim > 0 {
		state, err := readFloat64File(filepath.Join(dataDir, rawState), meta.NTimesteps*meta.StateDim)
		if err != nil {
			return model.Trajectory{}, err
		}
		trajectory.States = reshape2(state, meta.NTimesteps, meta.StateDim)
	}

	if err := Validate(trajectory); err != nil {
		return model.Trajectory{}, fmt.Errorf("validate %s: %w", s.Dir, err)
	}
	return trajectory, nil
}

// WriteRaw writes a trajectory as a raw quality directory, the inverse of
// RawSource. Used as an export target and for fixtures.
func WriteRaw(dir string, trajectory model.Trajectory) error {
	meta := trajectory.Meta
	dataDir := filepath.Join(dir, vault.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create raw dirs: %w", err)
	}

	sidecar := vault.Sidecar{
		Version:  "0.1",
		Env:      meta.Env,
		Scenario: meta.Scenario,
		Quality:  meta.Quality,
		StructureShape: map[string]vault.ShapeEntry{
			"observations": {Shape: fmt.Sprintf("(1, %d, %d, %d)", meta.NTimesteps, meta.NAgents, meta.ObsDim)},
			"actions":      {Shape: fmt.Sprintf("(1, %d, %d, %d)", meta.NTimesteps, meta.NAgents, meta.ActDim)},
			"rewards":      {Shape: fmt.Sprintf("(1, %d, %d)", meta.NTimesteps, meta.NAgents)},
		},
	}
	if meta.StateDim > 0 && trajectory.States != nil {
		sidecar.StructureShape["infos"] = vault.ShapeEntry{
			Group: map[string]string{"state": fmt.Sprintf("(1, %d, %d)", meta.NTimesteps, meta.StateDim)},
		}
	}
	sidecarBytes, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, vault.MetadataFile), sidecarBytes, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}

	writes := []struct {
		file   string
		values []float64
	}{
		{rawObservations, flattenRows3(trajectory.Observations)},
		{rawActions, flattenRows3(trajectory.Actions)},
		{rawRewards, flattenRows2(trajectory.Rewards)},
	}
	if meta.StateDim > 0 && trajectory.States != nil {
		writes = append(writes, struct {
			file   string
			values []float64
		}{rawState, flattenRows2(trajectory.States)})
	}
	for _, w := range writes {
		if err := writeFloat64File(filepath.Join(dataDir, w.file), w.values); err != nil {
			return err
		}
	}

	if trajectory.Terminals != nil {
		if err := writeBoolFile(filepath.Join(dataDir, rawTerminals), flattenBoolRows(trajectory.Terminals)); err != nil {
			return err
		}
	}
	if trajectory.Truncations != nil {
		if err := writeBoolFile(filepath.Join(dataDir, rawTruncations), flattenBoolRows(trajectory.Truncations)); err != nil {
			return err
		}
	}
	return nil
}

func readFloat64File(path string, want int) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw array: %w", err)
	}
	if len(data) != want*8 {
		return nil, fmt.Errorf("%s: %d bytes, want %d", path, len(data), want*8)
	}
	values := make([]float64, want)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return values, nil
}

func writeFloat64File(path string, values []float64) error {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write raw array: %w", err)
	}
	return nil
}

func readBoolFile(path string, want int) ([]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw flags: %w", err)
	}
	if len(data) != want {
		return nil, fmt.Errorf("%s: %d bytes, want %d", path, len(data), want)
	}
	values := make([]bool, want)
	for i, b := range data {
		values[i] = b != 0
	}
	return values, nil
}

func writeBoolFile(path string, values []bool) error {
	data := make([]byte, len(values))
	for i, v := range values {
		if v {
			data[i] = 1
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write raw flags: %w", err)
	}
	return nil
}

func reshape3(values []float64, d0, d1, d2 int) [][][]float64 {
	out := make([][][]float64, d0)
	for i := range out {
		row := make([][]float64, d1)
		for j := range row {
			offset := (i*d1 + j) * d2
			row[j] = values[offset : offset+d2 : offset+d2]
		}
		out[i] = row
	}
	return out
}

func reshape2(values []float64, d0, d1 int) [][]float64 {
	out := make([][]float64, d0)
	for i := range out {
		out[i] = values[i*d1 : (i+1)*d1 : (i+1)*d1]
	}
	return out
}

func reshapeBools(values []bool, d0, d1 int) [][]bool {
	out := make([][]bool, d0)
	for i := range out {
		out[i] = values[i*d1 : (i+1)*d1 : (i+1)*d1]
	}
	return out
}

func flattenRows3(rows [][][]float64) []float64 {
	out := make([]float64, 0)
	for _, row := range rows {
		for _, vec := range row {
			out = append(out, vec...)
		}
	}
	return out
}

func flattenRows2(rows [][]float64) []float64 {
	out := make([]float64, 0)
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

func flattenBoolRows(rows [][]bool) []bool {
	out := make([]bool, 0)
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}
