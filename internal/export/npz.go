package export

import (
	"archive/zip"
	"fmt"
	"io"

	"marlvault/internal/model"
)

type npzEntry struct {
	name  string
	array npyArray
}

// WriteNPZ writes a trajectory as a compressed NPZ archive: a zip of NPY
// entries named observations, actions, rewards, terminals, truncations,
// states (when present) plus scalar metadata entries.
func WriteNPZ(w io.Writer, trajectory model.Trajectory) error {
	meta := trajectory.Meta
	zw := zip.NewWriter(w)

	entries := []npzEntry{
		{"observations", float64sArray(
			[]int{meta.NTimesteps, meta.NAgents, meta.ObsDim},
			flatten3(trajectory.Observations))},
		{"actions", float64sArray(
			[]int{meta.NTimesteps, meta.NAgents, meta.ActDim},
			flatten3(trajectory.Actions))},
		{"rewards", float64sArray(
			[]int{meta.NTimesteps, meta.NAgents},
			flatten2(trajectory.Rewards))},
		{"terminals", boolsArray(
			[]int{meta.NTimesteps, meta.NAgents},
			flattenBools(trajectory.Terminals, meta.NTimesteps, meta.NAgents))},
		{"truncations", boolsArray(
			[]int{meta.NTimesteps, meta.NAgents},
			flattenBools(trajectory.Truncations, meta.NTimesteps, meta.NAgents))},
	}
	if trajectory.States != nil {
		entries = append(entries, npzEntry{"states", float64sArray(
			[]int{meta.NTimesteps, meta.StateDim},
			flatten2(trajectory.States))})
	}
	entries = append(entries,
		npzEntry{"n_timesteps", int64Scalar(meta.NTimesteps)},
		npzEntry{"n_agents", int64Scalar(meta.NAgents)},
		npzEntry{"env", stringScalar(meta.Env)},
		npzEntry{"scenario", stringScalar(meta.Scenario)},
		npzEntry{"quality", stringScalar(meta.Quality)},
	)

	for _, entry := range entries {
		ew, err := zw.CreateHeader(&zip.FileHeader{
			Name:   entry.name + ".npy",
			Method: zip.Deflate,
		})
		if err != nil {
			return fmt.Errorf("create npz entry %s: %w", entry.name, err)
		}
		if err := writeNPY(ew, entry.array); err != nil {
			return fmt.Errorf("write npz entry %s: %w", entry.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close npz: %w", err)
	}
	return nil
}

// ReadNPZ loads a trajectory back from an NPZ archive produced by WriteNPZ
// (or the equivalent numpy savez layout).
func ReadNPZ(r io.ReaderAt, size int64) (model.Trajectory, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("open npz: %w", err)
	}

	arrays := make(map[string]npyArray, len(zr.File))
	for _, file := range zr.File {
		name := file.Name
		if len(name) > 4 && name[len(name)-4:] == ".npy" {
			name = name[:len(name)-4]
		}
		rc, err := file.Open()
		if err != nil {
			return model.Trajectory{}, fmt.Errorf("open npz entry %s: %w", name, err)
		}
		array, err := readNPY(rc)
		closeErr := rc.Close()
		if err != nil {
			return model.Trajectory{}, fmt.Errorf("read npz entry %s: %w", name, err)
		}
		if closeErr != nil {
			return model.Trajectory{}, fmt.Errorf("close npz entry %s: %w", name, closeErr)
		}
		arrays[name] = array
	}

	obs, ok := arrays["observations"]
	if !ok || len(obs.Shape) != 3 {
		return model.Trajectory{}, fmt.Errorf("npz missing 3-dimensional observations")
	}
	act, ok := arrays["actions"]
	if !ok || len(act.Shape) != 3 {
		return model.Trajectory{}, fmt.Errorf("npz missing 3-dimensional actions")
	}
	rew, ok := arrays["rewards"]
	if !ok || len(rew.Shape) != 2 {
		return model.Trajectory{}, fmt.Errorf("npz missing 2-dimensional rewards")
	}

	meta := model.TrajectoryMeta{
		NTimesteps: obs.Shape[0],
		NAgents:    obs.Shape[1],
		ObsDim:     obs.Shape[2],
		ActDim:     act.Shape[2],
	}
	for name, target := range map[string]*string{
		"env": &meta.Env, "scenario": &meta.Scenario, "quality": &meta.Quality,
	} {
		if array, ok := arrays[name]; ok {
			value, err := array.str()
			if err != nil {
				return model.Trajectory{}, fmt.Errorf("npz %s: %w", name, err)
			}
			*target = value
		}
	}

	trajectory := model.Trajectory{Meta: meta}
	obsValues, err := obs.float64s()
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("npz observations: %w", err)
	}
	if err := checkElements("observations", len(obsValues), meta.NTimesteps*meta.NAgents*meta.ObsDim); err != nil {
		return model.Trajectory{}, err
	}
	trajectory.Observations = unflatten3(obsValues, meta.NTimesteps, meta.NAgents, meta.ObsDim)

	actValues, err := act.float64s()
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("npz actions: %w", err)
	}
	if err := checkElements("actions", len(actValues), meta.NTimesteps*meta.NAgents*meta.ActDim); err != nil {
		return model.Trajectory{}, err
	}
	trajectory.Actions = unflatten3(actValues, meta.NTimesteps, meta.NAgents, meta.ActDim)

	rewValues, err := rew.float64s()
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("npz rewards: %w", err)
	}
	if err := checkElements("rewards", len(rewValues), meta.NTimesteps*meta.NAgents); err != nil {
		return model.Trajectory{}, err
	}
	trajectory.Rewards = unflatten2(rewValues, meta.NTimesteps, meta.NAgents)

	for name, target := range map[string]*[][]bool{
		"terminals": &trajectory.Terminals, "truncations": &trajectory.Truncations,
	} {
		if array, ok := arrays[name]; ok {
			values, err := array.bools()
			if err != nil {
				return model.Trajectory{}, fmt.Errorf("npz %s: %w", name, err)
			}
			if err := checkElements(name, len(values), meta.NTimesteps*meta.NAgents); err != nil {
				return model.Trajectory{}, err
			}
			*target = unflattenBools(values, meta.NTimesteps, meta.NAgents)
		}
	}

	if array, ok := arrays["states"]; ok && len(array.Shape) == 2 {
		values, err := array.float64s()
		if err != nil {
			return model.Trajectory{}, fmt.Errorf("npz states: %w", err)
		}
		if err := checkElements("states", len(values), meta.NTimesteps*array.Shape[1]); err != nil {
			return model.Trajectory{}, err
		}
		meta.StateDim = array.Shape[1]
		trajectory.Meta.StateDim = array.Shape[1]
		trajectory.States = unflatten2(values, meta.NTimesteps, meta.StateDim)
	}

	return trajectory, nil
}

// checkElements guards the unflatten helpers: every entry must hold exactly
// the element count implied by the observations-derived dimensions, or the
// archive is inconsistent.
func checkElements(name string, got, want int) error {
	if got != want {
		return fmt.Errorf("npz %s: %d elements, want %d", name, got, want)
	}
	return nil
}

func flatten3(rows [][][]float64) []float64 {
	out := make([]float64, 0)
	for _, row := range rows {
		for _, vec := range row {
			out = append(out, vec...)
		}
	}
	return out
}

func flatten2(rows [][]float64) []float64 {
	out := make([]float64, 0)
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

func flattenBools(rows [][]bool, timesteps, agents int) []bool {
	out := make([]bool, timesteps*agents)
	for t, row := range rows {
		for a, v := range row {
			if t < timesteps && a < agents {
				out[t*agents+a] = v
			}
		}
	}
	return out
}

func unflatten3(values []float64, d0, d1, d2 int) [][][]float64 {
	out := make([][][]float64, d0)
	for i := range out {
		row := make([][]float64, d1)
		for j := range row {
			offset := (i*d1 + j) * d2
			row[j] = append([]float64(nil), values[offset:offset+d2]...)
		}
		out[i] = row
	}
	return out
}

func unflatten2(values []float64, d0, d1 int) [][]float64 {
	out := make([][]float64, d0)
	for i := range out {
		out[i] = append([]float64(nil), values[i*d1:(i+1)*d1]...)
	}
	return out
}

func unflattenBools(values []bool, d0, d1 int) [][]bool {
	out := make([][]bool, d0)
	for i := range out {
		out[i] = append([]bool(nil), values[i*d1:(i+1)*d1]...)
	}
	return out
}
