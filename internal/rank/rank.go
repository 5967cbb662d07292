package rank

import (
	"errors"
	"fmt"
	"sort"

	"marlvault/internal/model"
)

// ErrInvalidParameter reports a non-positive window length or stride, or a
// negative top/bottom count.
var ErrInvalidParameter = errors.New("invalid ranking parameter")

// Params configures one ranking pass over a trajectory's reward signal.
type Params struct {
	WindowLength int
	Stride       int
	TopK         int
	BottomK      int
}

// DefaultStride is the 50%-overlap stride used when the caller does not pick
// one: half the window length, floored, never below 1.
func DefaultStride(windowLength int) int {
	stride := windowLength / 2
	if stride < 1 {
		stride = 1
	}
	return stride
}

// Ranking holds every scored window in start order plus the selected
// top/bottom sets. The two sets may overlap in index range when K is large
// relative to the window count.
type Ranking struct {
	WindowLength int
	Stride       int
	Windows      []model.RankedWindow
	Top          []model.RankedWindow
	Bottom       []model.RankedWindow
}

// Rank partitions the reward timeline into fixed-length windows at starts
// 0, S, 2S, ... while start+L <= T, scores each window as the sum over its
// timesteps of the mean reward across agents, and selects the top-K and
// bottom-K windows by score. Ties break toward the earliest start. A window
// length longer than the trajectory yields an empty ranking, not an error.
// The input is never mutated.
func Rank(rewards [][]float64, p Params) (Ranking, error) {
	if p.WindowLength <= 0 {
		return Ranking{}, fmt.Errorf("%w: window length %d", ErrInvalidParameter, p.WindowLength)
	}
	if p.Stride <= 0 {
		return Ranking{}, fmt.Errorf("%w: stride %d", ErrInvalidParameter, p.Stride)
	}
	if p.TopK < 0 {
		return Ranking{}, fmt.Errorf("%w: top count %d", ErrInvalidParameter, p.TopK)
	}
	if p.BottomK < 0 {
		return Ranking{}, fmt.Errorf("%w: bottom count %d", ErrInvalidParameter, p.BottomK)
	}

	total := len(rewards)
	windows := make([]model.RankedWindow, 0)
	for start := 0; start+p.WindowLength <= total; start += p.Stride {
		score := 0.0
		for t := start; t < start+p.WindowLength; t++ {
			score += meanAcrossAgents(rewards[t])
		}
		windows = append(windows, model.RankedWindow{
			StartIndex:   start,
			EndIndex:     start + p.WindowLength,
			TotalScore:   score,
			AverageScore: score / float64(p.WindowLength),
		})
	}

	return Ranking{
		WindowLength: p.WindowLength,
		Stride:       p.Stride,
		Windows:      windows,
		Top:          selectWindows(windows, p.TopK, true),
		Bottom:       selectWindows(windows, p.BottomK, false),
	}, nil
}

// WindowAt scores the single window [start, start+length), using the same
// sum-of-agent-means scoring as Rank.
func WindowAt(rewards [][]float64, start, length int) model.RankedWindow {
	score := 0.0
	for t := start; t < start+length; t++ {
		score += meanAcrossAgents(rewards[t])
	}
	return model.RankedWindow{
		StartIndex:   start,
		EndIndex:     start + length,
		TotalScore:   score,
		AverageScore: score / float64(length),
	}
}

// Scores returns the windows' total scores in start order.
func (r Ranking) Scores() []float64 {
	scores := make([]float64, len(r.Windows))
	for i, w := range r.Windows {
		scores[i] = w.TotalScore
	}
	return scores
}

func meanAcrossAgents(row []float64) float64 {
	if len(row) == 0 {
		return 0
	}
	sum := 0.0
	for _, reward := range row {
		sum += reward
	}
	return sum / float64(len(row))
}

func selectWindows(windows []model.RankedWindow, k int, descending bool) []model.RankedWindow {
	sorted := append([]model.RankedWindow(nil), windows...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TotalScore != b.TotalScore {
			if descending {
				return a.TotalScore > b.TotalScore
			}
			return a.TotalScore < b.TotalScore
		}
		return a.StartIndex < b.StartIndex
	})
	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[:k]
}
