package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/damgoweb/tokaido-orai/internal/syncpoint"
)

var pointsCmd = &cobra.Command{
	Use:     "points",
	GroupID: "data",
	Short:   "List stored sync points",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		points, err := e.store.All(cmd.Context())
		if err != nil {
			return err
		}
		if len(points) == 0 {
			fmt.Println("No sync points")
			return nil
		}

		cat, _ := e.loadCatalog()
		for _, p := range points {
			text := ""
			if cat != nil {
				if seg, ok := cat.Segment(p.SegmentID); ok {
					text = seg.Text
				}
			}
			fmt.Printf("%9.2f  %-12s %s\n", p.Time, p.SegmentID, truncate(text, 40))
		}
		fmt.Printf("%d sync points\n", len(points))
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:     "lookup <seconds>",
	GroupID: "data",
	Short:   "Show the segment and station active at a playback time",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid time %q: %w", args[0], err)
		}
		if verr := syncpoint.CheckTime(t); verr != nil {
			return verr
		}

		e, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		cat, err := e.loadCatalog()
		if err != nil {
			return err
		}
		points, err := e.store.All(cmd.Context())
		if err != nil {
			return err
		}

		id, ok := syncpoint.ActiveSegmentAt(t, points)
		if !ok {
			fmt.Printf("No segment active at %.2fs\n", t)
			return nil
		}
		seg, ok := cat.Segment(id)
		if !ok {
			fmt.Printf("%.2fs: %s (not in catalog)\n", t, id)
			return nil
		}
		fmt.Printf("%.2fs: %s\n", t, seg.ID)
		if st, ok := cat.Station(seg.StationID); ok {
			fmt.Printf("Station %d: %s (%s)\n", st.ID, st.Name, st.ModernName)
		}
		fmt.Println(seg.Text)
		return nil
	},
}

var defaultSyncCmd = &cobra.Command{
	Use:     "default-sync",
	GroupID: "data",
	Short:   "Spread sync points evenly over the narration",
	Long: `Replace the stored sync points with one point per catalog segment,
spaced evenly over --duration seconds. Useful as a starting point before
recording real sync data. Refuses to overwrite existing points unless
--force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, _ := cmd.Flags().GetFloat64("duration")
		if duration <= 0 {
			return errors.New("--duration must be positive")
		}
		force, _ := cmd.Flags().GetBool("force")

		e, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		cat, err := e.loadCatalog()
		if err != nil {
			return err
		}
		if !force {
			n, err := e.store.Count(cmd.Context())
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%d sync points already stored; use --force to replace them", n)
			}
		}

		points := syncpoint.Even(duration, cat.SegmentIDs())
		if err := e.store.ReplaceAll(cmd.Context(), points); err != nil {
			return err
		}
		fmt.Printf("Stored %d evenly spaced sync points over %.0fs\n", len(points), duration)
		return nil
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	defaultSyncCmd.Flags().Float64("duration", 0, "Narration length in seconds")
	defaultSyncCmd.Flags().Bool("force", false, "Replace existing sync points")

	rootCmd.AddCommand(pointsCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(defaultSyncCmd)
}
