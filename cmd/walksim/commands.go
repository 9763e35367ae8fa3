package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/playperu/citywalk/internal/citywalk"
)

func pathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "List walking paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			paths, err := c.Paths(cmd.Context())
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Name", "City", "Stops"})
			for _, p := range paths {
				tw.AppendRow(table.Row{p.ID, p.Name, p.City, p.TotalStops})
			}
			tw.Render()
			return nil
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <path-id>",
		Short: "Start walking a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.Start(cmd.Context(), args[0])
			var conflict *citywalk.ConflictError
			if errors.As(err, &conflict) {
				return fmt.Errorf("path %s is in progress (%s); pause it first: walksim pause %s",
					conflict.Active.PathID, conflict.Active.ID, conflict.Active.PathID)
			}
			if err != nil {
				return err
			}
			fmt.Printf("started %s: progress %s (%d stops visited)\n", args[0], res.ProgressID, res.VisitedStopsCount)
			return nil
		},
	}
}

func pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <path-id>",
		Short: "Pause the path in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.Pause(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("paused %s: progress %s\n", args[0], res.ProgressID)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	var progressID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active path, or any attempt with --progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var snap citywalk.Snapshot
			if progressID != "" {
				snap, err = c.Snapshot(cmd.Context(), progressID)
			} else {
				snap, err = c.ActiveSnapshot(cmd.Context())
			}
			if errors.Is(err, citywalk.ErrNotFound) && progressID == "" {
				fmt.Println("no path in progress")
				return nil
			}
			if err != nil {
				return err
			}
			printSnapshot(snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&progressID, "progress", "", "progress id")
	return cmd
}

func printSnapshot(snap citywalk.Snapshot) {
	fmt.Printf("%s [%s] %d/%d stops\n", snap.PathName, snap.Progress.Status, snap.Progress.VisitedStopsCount, snap.TotalStops)
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"#", "Stop", "Radius (m)", "Reward", "Visited"})
	for _, s := range snap.Stops {
		reward := ""
		if s.Reward != nil {
			reward = s.Reward.Label
		}
		visited := ""
		if s.Visited {
			visited = "yes"
		}
		tw.AppendRow(table.Row{s.OrderIndex + 1, s.Title, s.Radius(), reward, visited})
	}
	tw.Render()
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List every path attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			items, err := c.History(cmd.Context())
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Progress", "Path", "Status", "Visited", "Started", "Completed"})
			for _, p := range items {
				completed := ""
				if p.CompletedAt != nil {
					completed = p.CompletedAt.Local().Format(time.DateTime)
				}
				tw.AppendRow(table.Row{p.ID, p.PathID, p.Status, p.VisitedStopsCount, p.StartedAt.Local().Format(time.DateTime), completed})
			}
			tw.Render()
			return nil
		},
	}
}

func rewardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rewards",
		Short: "List collected rewards",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			items, err := c.Rewards(cmd.Context())
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Reward", "Path", "Stop", "Collected"})
			for _, r := range items {
				tw.AppendRow(table.Row{r.RewardLabel, r.PathID, r.PointID, r.CollectedAt.Local().Format(time.DateTime)})
			}
			tw.Render()
			return nil
		},
	}
}

func replayCmd() *cobra.Command {
	var (
		file string
		opts replayOptions
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded track through the walking engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			tr, err := loadTrack(file)
			if err != nil {
				return err
			}
			opts.Logger = newLogger()
			return replay(cmd.Context(), c, tr, os.Stdout, opts)
		},
	}
	cmd.Flags().StringVar(&file, "track", "", "track file (YAML)")
	cmd.Flags().Float64Var(&opts.Speed, "speed", 1, "time multiplier for track waits")
	cmd.Flags().DurationVar(&opts.ConfirmDelay, "confirm-delay", time.Second, "time the simulated user takes to confirm a stop")
	_ = cmd.MarkFlagRequired("track")
	return cmd
}
