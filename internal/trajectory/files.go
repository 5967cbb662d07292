package trajectory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"marlvault/internal/export"
	"marlvault/internal/model"
)

// JSONSource loads a trajectory from a readable JSON archive file.
type JSONSource struct {
	Path string
}

func NewJSONSource(path string) *JSONSource {
	return &JSONSource{Path: path}
}

func (s *JSONSource) Load(_ context.Context) (model.Trajectory, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("open json archive: %w", err)
	}
	defer f.Close()

	trajectory, err := export.ReadJSON(f)
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("load %s: %w", s.Path, err)
	}
	if err := Validate(trajectory); err != nil {
		return model.Trajectory{}, fmt.Errorf("validate %s: %w", s.Path, err)
	}
	return trajectory, nil
}

// NPZSource loads a trajectory from a compressed NPZ archive file.
type NPZSource struct {
	Path string
}

func NewNPZSource(path string) *NPZSource {
	return &NPZSource{Path: path}
}

func (s *NPZSource) Load(_ context.Context) (model.Trajectory, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("open npz archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("stat npz archive: %w", err)
	}
	trajectory, err := export.ReadNPZ(f, info.Size())
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("load %s: %w", s.Path, err)
	}
	if err := Validate(trajectory); err != nil {
		return model.Trajectory{}, fmt.Errorf("validate %s: %w", s.Path, err)
	}
	return trajectory, nil
}

// Open picks a source by inspecting the path: a directory is treated as a
// raw quality directory, a .npz file as an NPZ archive, anything else as a
// readable JSON archive.
func Open(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	if info.IsDir() {
		return NewRawSource(path), nil
	}
	if strings.EqualFold(filepath.Ext(path), ".npz") {
		return NewNPZSource(path), nil
	}
	return NewJSONSource(path), nil
}
