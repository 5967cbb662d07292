package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"marlvault/internal/model"
)

// Sidecar mirrors a quality level's metadata.json. The provenance strings
// are optional; engine-written sidecars carry shapes only.
type Sidecar struct {
	Version        string                `json:"version"`
	Env            string                `json:"env,omitempty"`
	Scenario       string                `json:"scenario,omitempty"`
	Quality        string                `json:"quality,omitempty"`
	StructureShape map[string]ShapeEntry `json:"structure_shape"`
}

// ShapeEntry is either a shape string or a nested group of shape strings
// (the infos group).
type ShapeEntry struct {
	Shape string
	Group map[string]string
}

func (e *ShapeEntry) UnmarshalJSON(data []byte) error {
	var shape string
	if err := json.Unmarshal(data, &shape); err == nil {
		e.Shape = shape
		return nil
	}
	var group map[string]string
	if err := json.Unmarshal(data, &group); err == nil {
		e.Group = group
		return nil
	}
	return fmt.Errorf("structure_shape entry must be a shape string or a string map")
}

func (e ShapeEntry) MarshalJSON() ([]byte, error) {
	if e.Group != nil {
		return json.Marshal(e.Group)
	}
	return json.Marshal(e.Shape)
}

// ReadSidecar loads and decodes the metadata.json of a quality directory.
func ReadSidecar(qualityDir string) (Sidecar, error) {
	path := filepath.Join(qualityDir, MetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return Sidecar{}, fmt.Errorf("read sidecar: %w", err)
	}
	var sidecar Sidecar
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return Sidecar{}, fmt.Errorf("decode sidecar %s: %w", path, err)
	}
	return sidecar, nil
}

// ParseShape parses a textual shape like "(1, 50000, 20, 238)" into its
// dimensions. One-element tuples render with a trailing comma, "(5,)".
func ParseShape(s string) ([]int, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "(") || !strings.HasSuffix(trimmed, ")") {
		return nil, fmt.Errorf("malformed shape %q", s)
	}
	inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(trimmed, "("), ")"))
	inner = strings.TrimSpace(strings.TrimSuffix(inner, ","))
	if inner == "" {
		return nil, fmt.Errorf("malformed shape %q", s)
	}

	parts := strings.Split(inner, ",")
	dims := make([]int, 0, len(parts))
	for _, part := range parts {
		dim, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("malformed shape %q: %w", s, err)
		}
		if dim < 0 {
			return nil, fmt.Errorf("malformed shape %q: negative dimension", s)
		}
		dims = append(dims, dim)
	}
	return dims, nil
}

// MetaFromSidecar derives validated trajectory metadata from a sidecar's
// structure shapes. Recorded arrays carry a leading batch dimension that must
// be 1; timestep and agent counts must agree across keys. Discrete actions
// recorded as (1, T, A) yield ActDim 1.
func MetaFromSidecar(sidecar Sidecar) (model.TrajectoryMeta, error) {
	obsDims, err := keyShape(sidecar, "observations", 4)
	if err != nil {
		return model.TrajectoryMeta{}, err
	}
	meta := model.TrajectoryMeta{
		Env:        sidecar.Env,
		Scenario:   sidecar.Scenario,
		Quality:    sidecar.Quality,
		NTimesteps: obsDims[1],
		NAgents:    obsDims[2],
		ObsDim:     obsDims[3],
	}

	actEntry, ok := sidecar.StructureShape["actions"]
	if !ok {
		return model.TrajectoryMeta{}, fmt.Errorf("sidecar missing actions shape")
	}
	actDims, err := ParseShape(actEntry.Shape)
	if err != nil {
		return model.TrajectoryMeta{}, fmt.Errorf("actions: %w", err)
	}
	switch len(actDims) {
	case 4:
		meta.ActDim = actDims[3]
	case 3:
		meta.ActDim = 1
	default:
		return model.TrajectoryMeta{}, fmt.Errorf("actions shape must have 3 or 4 dimensions, got %d", len(actDims))
	}
	if err := checkBatchAndCounts("actions", actDims, meta); err != nil {
		return model.TrajectoryMeta{}, err
	}

	rewDims, err := keyShape(sidecar, "rewards", 3)
	if err != nil {
		return model.TrajectoryMeta{}, err
	}
	if err := checkBatchAndCounts("rewards", rewDims, meta); err != nil {
		return model.TrajectoryMeta{}, err
	}

	if infos, ok := sidecar.StructureShape["infos"]; ok && infos.Group != nil {
		if stateShape, ok := infos.Group["state"]; ok {
			stateDims, err := ParseShape(stateShape)
			if err != nil {
				return model.TrajectoryMeta{}, fmt.Errorf("infos/state: %w", err)
			}
			if len(stateDims) != 3 || stateDims[0] != 1 || stateDims[1] != meta.NTimesteps {
				return model.TrajectoryMeta{}, fmt.Errorf("infos/state shape %v inconsistent with observations", stateDims)
			}
			meta.StateDim = stateDims[2]
		}
	}

	if meta.NTimesteps <= 0 || meta.NAgents <= 0 || meta.ObsDim <= 0 || meta.ActDim <= 0 {
		return model.TrajectoryMeta{}, fmt.Errorf("degenerate trajectory metadata: %+v", meta)
	}
	return meta, nil
}

func keyShape(sidecar Sidecar, key string, wantDims int) ([]int, error) {
	entry, ok := sidecar.StructureShape[key]
	if !ok {
		return nil, fmt.Errorf("sidecar missing %s shape", key)
	}
	dims, err := ParseShape(entry.Shape)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if len(dims) != wantDims {
		return nil, fmt.Errorf("%s shape must have %d dimensions, got %d", key, wantDims, len(dims))
	}
	return dims, nil
}

func checkBatchAndCounts(key string, dims []int, meta model.TrajectoryMeta) error {
	if dims[0] != 1 {
		return fmt.Errorf("%s batch dimension must be 1, got %d", key, dims[0])
	}
	if dims[1] != meta.NTimesteps {
		return fmt.Errorf("%s timestep count %d does not match observations %d", key, dims[1], meta.NTimesteps)
	}
	if dims[2] != meta.NAgents {
		return fmt.Errorf("%s agent count %d does not match observations %d", key, dims[2], meta.NAgents)
	}
	return nil
}
