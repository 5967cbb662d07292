package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"marlvault/internal/model"
)

// WriteActionsCSV writes one row per timestep with each agent's action and an
// episode counter that advances on terminal timesteps. Multi-dimensional
// actions are space-separated inside their field.
func WriteActionsCSV(w io.Writer, trajectory model.Trajectory) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	agents := trajectory.Meta.NAgents
	header := []string{"timestep", "episode"}
	for i := 0; i < agents; i++ {
		header = append(header, fmt.Sprintf("agent_%d_action", i))
	}
	hasTerminals := trajectory.Terminals != nil
	if hasTerminals {
		header = append(header, "episode_end")
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write actions header: %w", err)
	}

	episode := 0
	for t := range trajectory.Actions {
		row := []string{strconv.Itoa(t), strconv.Itoa(episode)}
		for agent := 0; agent < agents; agent++ {
			var action []float64
			if agent < len(trajectory.Actions[t]) {
				action = trajectory.Actions[t][agent]
			}
			row = append(row, formatActionField(action))
		}
		if hasTerminals {
			terminal := t < len(trajectory.Terminals) && anyAgent(trajectory.Terminals[t])
			row = append(row, strconv.FormatBool(terminal))
			if terminal {
				episode++
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write actions row %d: %w", t, err)
		}
	}

	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush actions csv: %w", err)
	}
	return nil
}

// ActionEpisodes is the episode-segmented action layout.
type ActionEpisodes struct {
	TotalTimesteps int             `json:"total_timesteps"`
	NumAgents      int             `json:"num_agents"`
	NumEpisodes    int             `json:"num_episodes"`
	Episodes       []ActionEpisode `json:"episodes"`
}

type ActionEpisode struct {
	EpisodeNum int           `json:"episode_num"`
	Length     int           `json:"length"`
	Actions    [][][]float64 `json:"actions"`
	Incomplete bool          `json:"incomplete,omitempty"`
}

// SegmentEpisodes splits the action timeline into episodes at terminal
// timesteps. A trailing run with no terminal is kept and flagged incomplete.
func SegmentEpisodes(trajectory model.Trajectory) ActionEpisodes {
	out := ActionEpisodes{
		TotalTimesteps: len(trajectory.Actions),
		NumAgents:      trajectory.Meta.NAgents,
	}

	var current [][][]float64
	for t := range trajectory.Actions {
		current = append(current, trajectory.Actions[t])
		terminal := t < len(trajectory.Terminals) && anyAgent(trajectory.Terminals[t])
		if terminal {
			out.Episodes = append(out.Episodes, ActionEpisode{
				EpisodeNum: len(out.Episodes),
				Length:     len(current),
				Actions:    current,
			})
			current = nil
		}
	}
	if len(current) > 0 {
		out.Episodes = append(out.Episodes, ActionEpisode{
			EpisodeNum: len(out.Episodes),
			Length:     len(current),
			Actions:    current,
			Incomplete: true,
		})
	}
	out.NumEpisodes = len(out.Episodes)
	return out
}

// WriteActionsJSON writes the episode-segmented action layout.
func WriteActionsJSON(w io.Writer, trajectory model.Trajectory) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(SegmentEpisodes(trajectory)); err != nil {
		return fmt.Errorf("encode actions json: %w", err)
	}
	return nil
}

// WriteActionsTXT writes a human-readable joint-action log with episode
// banners and per-episode returns.
func WriteActionsTXT(w io.Writer, trajectory model.Trajectory) error {
	rule := strings.Repeat("=", 80)
	if _, err := fmt.Fprintf(w, "%s\nJOINT ACTION TRAJECTORIES\n%s\n\n", rule, rule); err != nil {
		return fmt.Errorf("write actions txt: %w", err)
	}

	agents := trajectory.Meta.NAgents
	episode := 0
	episodeStart := 0
	returns := make([]float64, agents)

	for t := range trajectory.Actions {
		if t == episodeStart {
			if _, err := fmt.Fprintf(w, "\n%s\nEPISODE %d\n%s\n", rule, episode, rule); err != nil {
				return fmt.Errorf("write episode banner: %w", err)
			}
		}
		if _, err := fmt.Fprintf(w, "\nTimestep %d (Episode step %d):\n  Joint Action: %v\n",
			t, t-episodeStart, trajectory.Actions[t]); err != nil {
			return fmt.Errorf("write actions txt row %d: %w", t, err)
		}
		if t < len(trajectory.Rewards) {
			if _, err := fmt.Fprintf(w, "  Rewards: %v\n", trajectory.Rewards[t]); err != nil {
				return fmt.Errorf("write actions txt rewards %d: %w", t, err)
			}
			for agent, reward := range trajectory.Rewards[t] {
				if agent < agents {
					returns[agent] += reward
				}
			}
		}
		if t < len(trajectory.Terminals) && anyAgent(trajectory.Terminals[t]) {
			if _, err := fmt.Fprintf(w, "\n  >>> EPISODE END <<<\n  Episode Length: %d\n  Episode Return: %v\n",
				t-episodeStart+1, returns); err != nil {
				return fmt.Errorf("write episode end %d: %w", t, err)
			}
			episode++
			episodeStart = t + 1
			returns = make([]float64, agents)
		}
	}
	return nil
}

func formatActionField(action []float64) string {
	if len(action) == 1 {
		return strconv.FormatFloat(action[0], 'f', -1, 64)
	}
	parts := make([]string, len(action))
	for i, v := range action {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}

func anyAgent(row []bool) bool {
	for _, v := range row {
		if v {
			return true
		}
	}
	return false
}
