package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// TrajectoryMeta is the structured description of one recorded trajectory.
// It is validated once at load time; downstream code never re-derives shapes
// from sidecar shape strings.
type TrajectoryMeta struct {
	Env      string `json:"env,omitempty"`
	Scenario string `json:"scenario,omitempty"`
	Quality  string `json:"quality,omitempty"`

	NTimesteps int `json:"n_timesteps"`
	NAgents    int `json:"n_agents"`
	ObsDim     int `json:"obs_dim"`
	ActDim     int `json:"act_dim"`
	// StateDim is 0 when the trajectory carries no shared global state.
	StateDim int `json:"state_dim,omitempty"`
}

// Trajectory is one time-ordered multi-agent recording, fully resident in
// memory. Index order is [timestep][agent][dim].
type Trajectory struct {
	Meta TrajectoryMeta `json:"meta"`

	Observations [][][]float64 `json:"observations"`
	Actions      [][][]float64 `json:"actions"`
	Rewards      [][]float64   `json:"rewards"`
	Terminals    [][]bool      `json:"terminals,omitempty"`
	Truncations  [][]bool      `json:"truncations,omitempty"`
	// States holds the per-timestep global state vector, nil when absent.
	States [][]float64 `json:"states,omitempty"`
}

// RankedWindow is one selected window of a reward ranking, in the shape
// handed to serialization collaborators.
type RankedWindow struct {
	StartIndex   int     `json:"start_index"`
	EndIndex     int     `json:"end_index"`
	TotalScore   float64 `json:"total_score"`
	AverageScore float64 `json:"average_score"`
}

// RewardStats summarizes the flattened per-agent reward signal.
type RewardStats struct {
	TotalReward float64 `json:"total_reward"`
	MeanReward  float64 `json:"mean_reward"`
	MinReward   float64 `json:"min_reward"`
	MaxReward   float64 `json:"max_reward"`
	StdReward   float64 `json:"std_reward"`
	NEpisodes   int     `json:"n_episodes"`
}

type TrajectoryRecord struct {
	VersionedRecord
	ID         string     `json:"id"`
	Trajectory Trajectory `json:"trajectory"`
}

type RankingRecord struct {
	VersionedRecord
	ID           string         `json:"id"`
	TrajectoryID string         `json:"trajectory_id,omitempty"`
	WindowLength int            `json:"window_length"`
	Stride       int            `json:"stride"`
	Top          []RankedWindow `json:"top"`
	Bottom       []RankedWindow `json:"bottom"`
}
