package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reloop-eco/reloop/internal/daemon"
)

func init() {
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire past-deadline mission participations now",
	Long: `Run the mission expiry sweep once. The daemon runs the same sweep on
a cron schedule; this command is for one-off runs and operational recovery.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		n, err := d.Engine.SweepExpired(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Expired %d mission participation(s).\n", n)
		return nil
	},
}
