package export

import (
	"encoding/json"
	"fmt"
	"io"

	"marlvault/internal/model"
	"marlvault/internal/stats"
)

// Archive is the readable JSON layout: a metadata object, per-timestep
// records, and a reward-statistics block.
type Archive struct {
	Metadata     ArchiveMetadata    `json:"metadata"`
	Trajectories []ArchiveStep      `json:"trajectories"`
	Statistics   *model.RewardStats `json:"statistics,omitempty"`
}

// ArchiveMetadata extends the trajectory metadata with provenance fields for
// extracted episode slices.
type ArchiveMetadata struct {
	model.TrajectoryMeta
	Note              string   `json:"note,omitempty"`
	OriginalStartStep *int     `json:"original_start_step,omitempty"`
	CumulativeReward  *float64 `json:"cumulative_reward,omitempty"`
}

type ArchiveStep struct {
	Timestep    int            `json:"timestep"`
	Agents      []ArchiveAgent `json:"agents"`
	GlobalState []float64      `json:"global_state,omitempty"`
}

type ArchiveAgent struct {
	AgentID     int       `json:"agent_id"`
	Observation []float64 `json:"observation"`
	Action      []float64 `json:"action"`
	Reward      float64   `json:"reward"`
	Terminal    bool      `json:"terminal"`
	Truncation  bool      `json:"truncation"`
}

// JSONOptions controls the readable JSON export.
type JSONOptions struct {
	// MaxSteps caps the number of exported timesteps; 0 or negative exports
	// everything. When capped, the emitted metadata reflects the emitted
	// step count so the archive stays self-consistent.
	MaxSteps int
	// Compact disables indentation.
	Compact bool
}

// WriteJSON writes a trajectory as a readable JSON archive.
func WriteJSON(w io.Writer, trajectory model.Trajectory, opts JSONOptions) error {
	archive := buildArchive(trajectory, ArchiveMetadata{TrajectoryMeta: trajectory.Meta}, opts.MaxSteps)

	trajStats := stats.Trajectory(trajectory)
	archive.Statistics = &trajStats

	encoder := json.NewEncoder(w)
	if !opts.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(archive); err != nil {
		return fmt.Errorf("encode json archive: %w", err)
	}
	return nil
}

// ReadJSON decodes a readable JSON archive back into a trajectory. Metadata
// counts are reconciled against the archived steps; missing dimension fields
// are inferred from the first step.
func ReadJSON(r io.Reader) (model.Trajectory, error) {
	var archive Archive
	if err := json.NewDecoder(r).Decode(&archive); err != nil {
		return model.Trajectory{}, fmt.Errorf("decode json archive: %w", err)
	}

	trajectory := model.Trajectory{Meta: archive.Metadata.TrajectoryMeta}
	total := len(archive.Trajectories)
	trajectory.Meta.NTimesteps = total

	trajectory.Observations = make([][][]float64, 0, total)
	trajectory.Actions = make([][][]float64, 0, total)
	trajectory.Rewards = make([][]float64, 0, total)
	trajectory.Terminals = make([][]bool, 0, total)
	trajectory.Truncations = make([][]bool, 0, total)

	hasState := false
	for _, step := range archive.Trajectories {
		obsRow := make([][]float64, 0, len(step.Agents))
		actRow := make([][]float64, 0, len(step.Agents))
		rewRow := make([]float64, 0, len(step.Agents))
		termRow := make([]bool, 0, len(step.Agents))
		truncRow := make([]bool, 0, len(step.Agents))
		for _, agent := range step.Agents {
			obsRow = append(obsRow, agent.Observation)
			actRow = append(actRow, agent.Action)
			rewRow = append(rewRow, agent.Reward)
			termRow = append(termRow, agent.Terminal)
			truncRow = append(truncRow, agent.Truncation)
		}
		trajectory.Observations = append(trajectory.Observations, obsRow)
		trajectory.Actions = append(trajectory.Actions, actRow)
		trajectory.Rewards = append(trajectory.Rewards, rewRow)
		trajectory.Terminals = append(trajectory.Terminals, termRow)
		trajectory.Truncations = append(trajectory.Truncations, truncRow)
		if step.GlobalState != nil {
			hasState = true
		}
	}
	if hasState {
		trajectory.States = make([][]float64, 0, total)
		for _, step := range archive.Trajectories {
			trajectory.States = append(trajectory.States, step.GlobalState)
		}
	}

	inferMeta(&trajectory)
	return trajectory, nil
}

func buildArchive(trajectory model.Trajectory, metadata ArchiveMetadata, maxSteps int) Archive {
	total := len(trajectory.Rewards)
	if maxSteps > 0 && maxSteps < total {
		total = maxSteps
	}
	metadata.NTimesteps = total

	steps := make([]ArchiveStep, 0, total)
	for t := 0; t < total; t++ {
		step := ArchiveStep{Timestep: t}
		for agent := range trajectory.Rewards[t] {
			record := ArchiveAgent{
				AgentID: agent,
				Reward:  trajectory.Rewards[t][agent],
			}
			if t < len(trajectory.Observations) && agent < len(trajectory.Observations[t]) {
				record.Observation = trajectory.Observations[t][agent]
			}
			if t < len(trajectory.Actions) && agent < len(trajectory.Actions[t]) {
				record.Action = trajectory.Actions[t][agent]
			}
			if t < len(trajectory.Terminals) && agent < len(trajectory.Terminals[t]) {
				record.Terminal = trajectory.Terminals[t][agent]
			}
			if t < len(trajectory.Truncations) && agent < len(trajectory.Truncations[t]) {
				record.Truncation = trajectory.Truncations[t][agent]
			}
			step.Agents = append(step.Agents, record)
		}
		if trajectory.States != nil && t < len(trajectory.States) {
			step.GlobalState = trajectory.States[t]
		}
		steps = append(steps, step)
	}

	return Archive{Metadata: metadata, Trajectories: steps}
}

func inferMeta(trajectory *model.Trajectory) {
	if len(trajectory.Rewards) == 0 {
		return
	}
	if trajectory.Meta.NAgents == 0 {
		trajectory.Meta.NAgents = len(trajectory.Rewards[0])
	}
	if trajectory.Meta.ObsDim == 0 && len(trajectory.Observations) > 0 && len(trajectory.Observations[0]) > 0 {
		trajectory.Meta.ObsDim = len(trajectory.Observations[0][0])
	}
	if trajectory.Meta.ActDim == 0 && len(trajectory.Actions) > 0 && len(trajectory.Actions[0]) > 0 {
		trajectory.Meta.ActDim = len(trajectory.Actions[0][0])
	}
	if trajectory.Meta.StateDim == 0 && len(trajectory.States) > 0 {
		trajectory.Meta.StateDim = len(trajectory.States[0])
	}
}
