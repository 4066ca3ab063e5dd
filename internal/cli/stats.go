package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reloop-eco/reloop/internal/daemon"
)

func init() {
	statsCmd.Flags().IntVar(&statsTop, "top", 10, "Leaderboard size")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(userCmd)
}

var statsTop int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show community impact and the points leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		stats, err := d.DB.Impact(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Users:        %d\n", stats.Users)
		fmt.Printf("Submissions:  %d\n", stats.Submissions)
		fmt.Printf("Total weight: %.2f kg\n", stats.TotalWeightKg)
		fmt.Printf("CO2 saved:    %.2f kg\n", stats.CO2SavedKg)

		if len(stats.PerCategoryKg) > 0 {
			fmt.Println("\nBy category:")
			categories := make([]string, 0, len(stats.PerCategoryKg))
			for c := range stats.PerCategoryKg {
				categories = append(categories, c)
			}
			sort.Strings(categories)
			for _, c := range categories {
				fmt.Printf("  %-12s %.2f kg\n", c, stats.PerCategoryKg[c])
			}
		}

		board, err := d.DB.Leaderboard(cmd.Context(), statsTop)
		if err != nil {
			return err
		}
		if len(board) == 0 {
			return nil
		}

		fmt.Println("\nLeaderboard:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tUSER\tPOINTS\tWEIGHT\tCO2")
		for i, e := range board {
			fmt.Fprintf(w, "%d\t%s\t%d\t%.2f kg\t%.2f kg\n",
				i+1, e.UserID, e.Points, e.TotalWeightKg, e.CO2SavedKg)
		}
		return w.Flush()
	},
}

var userCmd = &cobra.Command{
	Use:   "user <user-id>",
	Short: "Show one user's reward snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		snap, err := d.DB.GetSnapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("User:         %s (version %d)\n", snap.UserID, snap.Version)
		fmt.Printf("Points:       %d\n", snap.PointsBalance)
		fmt.Printf("Total weight: %.2f kg\n", snap.TotalWeightKg)
		fmt.Printf("CO2 saved:    %.2f kg\n", snap.CO2SavedKg)
		fmt.Printf("Submissions:  %d\n", snap.SubmissionCount)
		fmt.Printf("Badges:       %d\n", len(snap.AwardedBadgeIDs))

		if len(snap.Missions) > 0 {
			fmt.Println("\nMissions:")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MISSION\tSTATUS\tPROGRESS")
			ids := make([]string, 0, len(snap.Missions))
			for id := range snap.Missions {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				m := snap.Missions[id]
				fmt.Fprintf(w, "%s\t%s\t%.1f\n", id, m.Status, m.Progress)
			}
			return w.Flush()
		}
		return nil
	},
}
