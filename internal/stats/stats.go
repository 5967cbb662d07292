package stats

import (
	"math"

	"marlvault/internal/model"
)

// Rewards summarizes the flattened per-agent reward signal. Episode count is
// left at zero; combine with CountEpisodes when terminal flags are available.
func Rewards(rewards [][]float64) model.RewardStats {
	values := make([]float64, 0, len(rewards))
	for _, row := range rewards {
		values = append(values, row...)
	}
	if len(values) == 0 {
		return model.RewardStats{}
	}

	total := 0.0
	min := values[0]
	max := values[0]
	for _, v := range values {
		total += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := total / float64(len(values))

	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}

	return model.RewardStats{
		TotalReward: total,
		MeanReward:  mean,
		MinReward:   min,
		MaxReward:   max,
		StdReward:   math.Sqrt(sumSq / float64(len(values))),
	}
}

// CountEpisodes counts timesteps at which any agent terminates or truncates.
func CountEpisodes(terminals, truncations [][]bool) int {
	count := 0
	for t := range terminals {
		if anyTrue(terminals[t]) {
			count++
			continue
		}
		if t < len(truncations) && anyTrue(truncations[t]) {
			count++
		}
	}
	for t := len(terminals); t < len(truncations); t++ {
		if anyTrue(truncations[t]) {
			count++
		}
	}
	return count
}

// Trajectory computes reward statistics plus the episode count for a loaded
// trajectory.
func Trajectory(trajectory model.Trajectory) model.RewardStats {
	out := Rewards(trajectory.Rewards)
	out.NEpisodes = CountEpisodes(trajectory.Terminals, trajectory.Truncations)
	return out
}

// Summary describes a set of window scores.
type Summary struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
}

// Summarize reduces a score list to its count, mean, population standard
// deviation, min and max.
func Summarize(scores []float64) Summary {
	if len(scores) == 0 {
		return Summary{}
	}
	total := 0.0
	min := scores[0]
	max := scores[0]
	for _, s := range scores {
		total += s
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	mean := total / float64(len(scores))
	sumSq := 0.0
	for _, s := range scores {
		diff := s - mean
		sumSq += diff * diff
	}
	return Summary{
		Count: len(scores),
		Mean:  mean,
		Std:   math.Sqrt(sumSq / float64(len(scores))),
		Min:   min,
		Max:   max,
	}
}

func anyTrue(row []bool) bool {
	for _, v := range row {
		if v {
			return true
		}
	}
	return false
}
