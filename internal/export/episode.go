package export

import (
	"encoding/json"
	"fmt"
	"io"

	"marlvault/internal/model"
)

// WriteEpisodeJSON writes an extracted episode slice with provenance: a note,
// the window's start step in the source trajectory, and the window's
// cumulative reward score.
func WriteEpisodeJSON(w io.Writer, slice model.Trajectory, note string, window model.RankedWindow) error {
	start := window.StartIndex
	score := window.TotalScore
	metadata := ArchiveMetadata{
		TrajectoryMeta:    slice.Meta,
		Note:              note,
		OriginalStartStep: &start,
		CumulativeReward:  &score,
	}
	archive := buildArchive(slice, metadata, 0)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(archive); err != nil {
		return fmt.Errorf("encode episode json: %w", err)
	}
	return nil
}
