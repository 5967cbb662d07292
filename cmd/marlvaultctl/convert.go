package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"marlvault/internal/export"
	"marlvault/internal/model"
	"marlvault/internal/trajectory"
	"marlvault/internal/vault"
)

// resolveSource turns the --in/--vault/--quality flag combination into a
// loadable source path. --vault selects a quality directory by name; --in
// names a raw quality dir, NPZ, or JSON archive directly.
func resolveSource(inPath, vaultPath, qualityName string) (string, error) {
	switch {
	case inPath != "" && vaultPath != "":
		return "", errors.New("use either --in or --vault, not both")
	case inPath != "":
		return inPath, nil
	case vaultPath != "":
		quality, err := vault.FindQuality(vaultPath, qualityName)
		if err != nil {
			return "", err
		}
		return quality.Path, nil
	default:
		return "", errors.New("a source is required: --in or --vault")
	}
}

func loadTrajectory(ctx context.Context, path string) (model.Trajectory, error) {
	source, err := trajectory.Open(path)
	if err != nil {
		return model.Trajectory{}, err
	}
	return source.Load(ctx)
}

func reportWritten(label, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	fmt.Printf("%s=%s size=%s\n", label, path, humanize.Bytes(uint64(info.Size())))
	return nil
}

func runConvert(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	inPath := fs.String("in", "", "source: raw quality dir, .npz, or .json")
	vaultPath := fs.String("vault", "", "vault directory (used with --quality)")
	qualityName := fs.String("quality", "", "quality level name (empty selects the first)")
	outPath := fs.String("out", "", "output JSON path")
	maxSteps := fs.Int("max-steps", 100, "cap on emitted steps (0 emits all)")
	compact := fs.Bool("compact", false, "emit compact JSON instead of indented")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outPath == "" {
		return errors.New("convert requires --out")
	}

	sourcePath, err := resolveSource(*inPath, *vaultPath, *qualityName)
	if err != nil {
		return err
	}
	traj, err := loadTrajectory(ctx, sourcePath)
	if err != nil {
		return err
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := export.WriteJSON(out, traj, export.JSONOptions{MaxSteps: *maxSteps, Compact: *compact}); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Printf("converted source=%s timesteps=%d agents=%d\n", sourcePath, traj.Meta.NTimesteps, traj.Meta.NAgents)
	return reportWritten("out", *outPath)
}

func runExportNPZ(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export-npz", flag.ContinueOnError)
	inPath := fs.String("in", "", "source: raw quality dir, .npz, or .json")
	vaultPath := fs.String("vault", "", "vault directory (used with --quality)")
	qualityName := fs.String("quality", "", "quality level name (empty selects the first)")
	outPath := fs.String("out", "", "output NPZ path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outPath == "" {
		return errors.New("export-npz requires --out")
	}

	sourcePath, err := resolveSource(*inPath, *vaultPath, *qualityName)
	if err != nil {
		return err
	}
	traj, err := loadTrajectory(ctx, sourcePath)
	if err != nil {
		return err
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := export.WriteNPZ(out, traj); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Printf("exported source=%s timesteps=%d agents=%d\n", sourcePath, traj.Meta.NTimesteps, traj.Meta.NAgents)
	return reportWritten("out", *outPath)
}

func runActions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("actions", flag.ContinueOnError)
	inPath := fs.String("in", "", "source: raw quality dir, .npz, or .json")
	vaultPath := fs.String("vault", "", "vault directory (used with --quality)")
	qualityName := fs.String("quality", "", "quality level name (empty selects the first)")
	outBase := fs.String("out", "", "output base path (extension added per format)")
	format := fs.String("format", "all", "action export format: csv|json|txt|all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outBase == "" {
		return errors.New("actions requires --out")
	}

	var formats []string
	switch *format {
	case "csv", "json", "txt":
		formats = []string{*format}
	case "all":
		formats = []string{"csv", "json", "txt"}
	default:
		return fmt.Errorf("unsupported format: %s", *format)
	}

	sourcePath, err := resolveSource(*inPath, *vaultPath, *qualityName)
	if err != nil {
		return err
	}
	traj, err := loadTrajectory(ctx, sourcePath)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(*outBase, filepath.Ext(*outBase))
	episodes := export.SegmentEpisodes(traj)
	fmt.Printf("actions source=%s timesteps=%d agents=%d episodes=%d\n",
		sourcePath, traj.Meta.NTimesteps, traj.Meta.NAgents, len(episodes.Episodes))

	for _, f := range formats {
		path := base + "." + f
		out, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		switch f {
		case "csv":
			err = export.WriteActionsCSV(out, traj)
		case "json":
			err = export.WriteActionsJSON(out, traj)
		case "txt":
			err = export.WriteActionsTXT(out, traj)
		}
		if err != nil {
			_ = out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		if err := reportWritten("out", path); err != nil {
			return err
		}
	}
	return nil
}
