package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"marlvault/internal/storage"
	"marlvault/internal/vault"
	vaultapi "marlvault/pkg/marlvault"
)

const defaultDBPath = "marlvault.db"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "inspect":
		return runInspect(ctx, args[1:])
	case "convert":
		return runConvert(ctx, args[1:])
	case "export-npz":
		return runExportNPZ(ctx, args[1:])
	case "actions":
		return runActions(ctx, args[1:])
	case "rank":
		return runRank(ctx, args[1:])
	case "stats":
		return runStats(ctx, args[1:])
	case "import":
		return runImport(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInspect(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	vaultPath := fs.String("vault", "", "vault directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *vaultPath == "" {
		return errors.New("inspect requires --vault")
	}

	qualities, err := vault.ListQualities(*vaultPath)
	if err != nil {
		return err
	}
	if len(qualities) == 0 {
		fmt.Printf("vault=%s qualities=0\n", *vaultPath)
		return nil
	}

	fmt.Printf("vault=%s qualities=%d\n", *vaultPath, len(qualities))
	for _, quality := range qualities {
		fmt.Printf("quality=%s metadata=%t manifest=%t data=%t\n",
			quality.Name, quality.HasMetadata, quality.HasManifest, quality.HasData)
		if !quality.HasMetadata {
			continue
		}
		sidecar, err := vault.ReadSidecar(quality.Path)
		if err != nil {
			fmt.Printf("quality=%s sidecar_error=%q\n", quality.Name, err)
			continue
		}
		for key, entry := range sidecar.StructureShape {
			fmt.Printf("quality=%s key=%s shape=%s\n", quality.Name, key, entry.Shape)
		}
		meta, err := vault.MetaFromSidecar(sidecar)
		if err != nil {
			fmt.Printf("quality=%s meta_error=%q\n", quality.Name, err)
			continue
		}
		fmt.Printf("quality=%s timesteps=%d agents=%d obs_dim=%d act_dim=%d state_dim=%d\n",
			quality.Name, meta.NTimesteps, meta.NAgents, meta.ObsDim, meta.ActDim, meta.StateDim)
	}
	return nil
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	inPath := fs.String("in", "", "source: raw quality dir, .npz, or .json")
	trajectoryID := fs.String("id", "", "explicit trajectory id (optional)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return errors.New("import requires --in")
	}

	client, err := vaultapi.New(vaultapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.ImportTrajectory(ctx, vaultapi.ImportRequest{
		Path:         *inPath,
		TrajectoryID: *trajectoryID,
	})
	if err != nil {
		return err
	}

	fmt.Printf("imported trajectory_id=%s timesteps=%d agents=%d episodes=%d total_reward=%.4f\n",
		summary.TrajectoryID, summary.Meta.NTimesteps, summary.Meta.NAgents,
		summary.Stats.NEpisodes, summary.Stats.TotalReward)
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	trajectoryID := fs.String("trajectory-id", "", "trajectory record id")
	rankingID := fs.String("ranking-id", "", "ranking record id")
	list := fs.Bool("list", false, "list stored trajectory ids")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*list && *trajectoryID == "" && *rankingID == "" {
		return errors.New("show requires --trajectory-id, --ranking-id, or --list")
	}

	client, err := vaultapi.New(vaultapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	if *list {
		ids, err := client.Trajectories(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("trajectories=%d\n", len(ids))
		for _, id := range ids {
			fmt.Printf("trajectory_id=%s\n", id)
		}
		return nil
	}

	if *trajectoryID != "" {
		record, ok, err := client.Trajectory(ctx, *trajectoryID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("trajectory not found: %s", *trajectoryID)
		}
		fmt.Printf("trajectory_id=%s env=%s scenario=%s quality=%s timesteps=%d agents=%d obs_dim=%d act_dim=%d state_dim=%d\n",
			record.ID, record.Trajectory.Meta.Env, record.Trajectory.Meta.Scenario,
			record.Trajectory.Meta.Quality, record.Trajectory.Meta.NTimesteps,
			record.Trajectory.Meta.NAgents, record.Trajectory.Meta.ObsDim,
			record.Trajectory.Meta.ActDim, record.Trajectory.Meta.StateDim)
		if rewardStats, ok, err := client.RewardStats(ctx, record.ID); err != nil {
			return err
		} else if ok {
			fmt.Printf("total_reward=%.4f mean_reward=%.4f episodes=%d\n",
				rewardStats.TotalReward, rewardStats.MeanReward, rewardStats.NEpisodes)
		}
		return nil
	}

	record, ok, err := client.Ranking(ctx, *rankingID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ranking not found: %s", *rankingID)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: marlvaultctl <inspect|convert|export-npz|actions|rank|stats|import|show> [flags]", msg)
}
