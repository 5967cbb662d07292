package trajectory

import (
	"context"
	"fmt"

	"marlvault/internal/model"
)

// Source is the generic trajectory data source capability: any backend that
// can materialize a full trajectory into memory. The ranking and export code
// never cares which backend produced the data.
type Source interface {
	Load(ctx context.Context) (model.Trajectory, error)
}

// Validate enforces the trajectory shape invariants: declared metadata counts
// must match the arrays, and every timestep's observation/action vectors must
// have the declared dimensions. The first deviation is reported with its
// timestep and field.
func Validate(trajectory model.Trajectory) error {
	meta := trajectory.Meta
	if meta.NTimesteps != len(trajectory.Rewards) {
		return fmt.Errorf("declared %d timesteps, rewards have %d", meta.NTimesteps, len(trajectory.Rewards))
	}
	if len(trajectory.Observations) != meta.NTimesteps {
		return fmt.Errorf("declared %d timesteps, observations have %d", meta.NTimesteps, len(trajectory.Observations))
	}
	if len(trajectory.Actions) != meta.NTimesteps {
		return fmt.Errorf("declared %d timesteps, actions have %d", meta.NTimesteps, len(trajectory.Actions))
	}
	if trajectory.States != nil && len(trajectory.States) != meta.NTimesteps {
		return fmt.Errorf("declared %d timesteps, states have %d", meta.NTimesteps, len(trajectory.States))
	}

	for t := 0; t < meta.NTimesteps; t++ {
		if len(trajectory.Rewards[t]) != meta.NAgents {
			return fmt.Errorf("timestep %d: rewards for %d agents, want %d", t, len(trajectory.Rewards[t]), meta.NAgents)
		}
		if len(trajectory.Observations[t]) != meta.NAgents {
			return fmt.Errorf("timestep %d: observations for %d agents, want %d", t, len(trajectory.Observations[t]), meta.NAgents)
		}
		if len(trajectory.Actions[t]) != meta.NAgents {
			return fmt.Errorf("timestep %d: actions for %d agents, want %d", t, len(trajectory.Actions[t]), meta.NAgents)
		}
		for agent := 0; agent < meta.NAgents; agent++ {
			if len(trajectory.Observations[t][agent]) != meta.ObsDim {
				return fmt.Errorf("timestep %d agent %d: observation dim %d, want %d",
					t, agent, len(trajectory.Observations[t][agent]), meta.ObsDim)
			}
			if len(trajectory.Actions[t][agent]) != meta.ActDim {
				return fmt.Errorf("timestep %d agent %d: action dim %d, want %d",
					t, agent, len(trajectory.Actions[t][agent]), meta.ActDim)
			}
		}
		if t < len(trajectory.Terminals) && len(trajectory.Terminals[t]) != meta.NAgents {
			return fmt.Errorf("timestep %d: terminals for %d agents, want %d", t, len(trajectory.Terminals[t]), meta.NAgents)
		}
		if t < len(trajectory.Truncations) && len(trajectory.Truncations[t]) != meta.NAgents {
			return fmt.Errorf("timestep %d: truncations for %d agents, want %d", t, len(trajectory.Truncations[t]), meta.NAgents)
		}
		if trajectory.States != nil && len(trajectory.States[t]) != meta.StateDim {
			return fmt.Errorf("timestep %d: state dim %d, want %d", t, len(trajectory.States[t]), meta.StateDim)
		}
	}
	return nil
}
