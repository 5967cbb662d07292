package vault

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// MetadataFile is the per-quality sidecar describing recorded shapes.
	MetadataFile = "metadata.json"
	// ManifestFile marks a quality directory written by the vault engine.
	ManifestFile = "manifest.ocdbt"
	// DataDir holds the engine's raw array data.
	DataDir = "d"
)

// Quality describes one quality-level subdirectory of a vault.
type Quality struct {
	Name        string
	Path        string
	HasMetadata bool
	HasManifest bool
	HasData     bool
}

// ListQualities probes the immediate subdirectories of vaultPath for vault
// marker files. A subdirectory carrying at least one marker is a quality
// level. An existing vault with no quality directories yields an empty list.
func ListQualities(vaultPath string) ([]Quality, error) {
	entries, err := os.ReadDir(vaultPath)
	if err != nil {
		return nil, fmt.Errorf("read vault dir: %w", err)
	}

	qualities := make([]Quality, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(vaultPath, entry.Name())
		quality := Quality{
			Name:        entry.Name(),
			Path:        dir,
			HasMetadata: fileExists(filepath.Join(dir, MetadataFile)),
			HasManifest: fileExists(filepath.Join(dir, ManifestFile)),
			HasData:     dirExists(filepath.Join(dir, DataDir)),
		}
		if quality.HasMetadata || quality.HasManifest || quality.HasData {
			qualities = append(qualities, quality)
		}
	}
	return qualities, nil
}

// FindQuality returns the named quality level, or the first available one
// when name is empty.
func FindQuality(vaultPath, name string) (Quality, error) {
	qualities, err := ListQualities(vaultPath)
	if err != nil {
		return Quality{}, err
	}
	if len(qualities) == 0 {
		return Quality{}, fmt.Errorf("no quality directories found in %s", vaultPath)
	}
	if name == "" {
		return qualities[0], nil
	}
	for _, quality := range qualities {
		if quality.Name == name {
			return quality, nil
		}
	}
	return Quality{}, fmt.Errorf("quality %q not found in %s", name, vaultPath)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
