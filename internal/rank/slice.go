package rank

import (
	"fmt"

	"marlvault/internal/model"
)

// Slice extracts the window's timesteps as a standalone trajectory with
// re-based timestep indexing. Row data is copied so the slice survives the
// source trajectory.
func Slice(trajectory model.Trajectory, window model.RankedWindow) (model.Trajectory, error) {
	total := len(trajectory.Rewards)
	if window.StartIndex < 0 || window.EndIndex > total || window.StartIndex >= window.EndIndex {
		return model.Trajectory{}, fmt.Errorf("window [%d, %d) out of range for %d timesteps", window.StartIndex, window.EndIndex, total)
	}

	out := model.Trajectory{Meta: trajectory.Meta}
	out.Meta.NTimesteps = window.EndIndex - window.StartIndex

	out.Observations = copyMatrix3(trajectory.Observations, window.StartIndex, window.EndIndex)
	out.Actions = copyMatrix3(trajectory.Actions, window.StartIndex, window.EndIndex)
	out.Rewards = copyMatrix(trajectory.Rewards, window.StartIndex, window.EndIndex)
	out.Terminals = copyBoolMatrix(trajectory.Terminals, window.StartIndex, window.EndIndex)
	out.Truncations = copyBoolMatrix(trajectory.Truncations, window.StartIndex, window.EndIndex)
	out.States = copyMatrix(trajectory.States, window.StartIndex, window.EndIndex)
	return out, nil
}

// EvenStarts returns up to count evenly spaced window start indices spanning
// the trajectory, always ending at the last full window. This is the
// progression-sampling variant of window placement; the ranking path never
// uses it.
func EvenStarts(total, windowLength, count int) ([]int, error) {
	if windowLength <= 0 {
		return nil, fmt.Errorf("%w: window length %d", ErrInvalidParameter, windowLength)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: sample count %d", ErrInvalidParameter, count)
	}
	if count == 0 || windowLength > total {
		return nil, nil
	}
	last := total - windowLength
	if count == 1 {
		return []int{last}, nil
	}

	step := last / (count - 1)
	starts := make([]int, 0, count)
	for i := 0; i < count-1; i++ {
		starts = append(starts, i*step)
	}
	return append(starts, last), nil
}

func copyMatrix(rows [][]float64, start, end int) [][]float64 {
	if rows == nil {
		return nil
	}
	out := make([][]float64, 0, end-start)
	for _, row := range rows[start:end] {
		out = append(out, append([]float64(nil), row...))
	}
	return out
}

func copyBoolMatrix(rows [][]bool, start, end int) [][]bool {
	if rows == nil {
		return nil
	}
	out := make([][]bool, 0, end-start)
	for _, row := range rows[start:end] {
		out = append(out, append([]bool(nil), row...))
	}
	return out
}

func copyMatrix3(rows [][][]float64, start, end int) [][][]float64 {
	if rows == nil {
		return nil
	}
	out := make([][][]float64, 0, end-start)
	for _, row := range rows[start:end] {
		copied := make([][]float64, 0, len(row))
		for _, vec := range row {
			copied = append(copied, append([]float64(nil), vec...))
		}
		out = append(out, copied)
	}
	return out
}
