package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/reloop-eco/reloop/internal/app/engine"
	"github.com/reloop-eco/reloop/internal/daemon"
	"github.com/reloop-eco/reloop/internal/domain"
)

func init() {
	submitCmd.Flags().StringVar(&submitUser, "user", "", "User id (required)")
	submitCmd.Flags().StringVar(&submitID, "id", "", "Submission id (generated when empty)")
	submitCmd.Flags().Float64Var(&submitWeight, "weight", 0, "Weight in kg")
	submitCmd.Flags().IntVar(&submitQty, "qty", 1, "Item count")
	submitCmd.Flags().Float64Var(&submitConfidence, "confidence", -1, "Classification confidence (0..1)")
	submitCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(submitCmd)

	registerCmd.Flags().StringVar(&submitUser, "user", "", "User id (required)")
	registerCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(registerCmd)
}

var (
	submitUser       string
	submitID         string
	submitWeight     float64
	submitQty        int
	submitConfidence float64
)

var submitCmd = &cobra.Command{
	Use:   "submit <category>",
	Short: "Record a waste submission for a user",
	Long: `Record a waste submission directly against the local ledger.
Example: reloop submit PLASTIC --user alice --weight 2.0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		if submitID == "" {
			submitID = uuid.NewString()
		}
		raw := engine.RawEvent{
			Kind:         string(domain.EventWasteSubmission),
			UserID:       submitUser,
			SubmissionID: submitID,
			CategoryName: strings.ToUpper(args[0]),
			WeightKg:     submitWeight,
			Quantity:     submitQty,
		}
		if submitConfidence >= 0 {
			raw.Confidence = &submitConfidence
		}

		res, err := d.Engine.Process(cmd.Context(), raw)
		if err != nil {
			return err
		}

		if res.Replayed {
			fmt.Printf("Submission %s already applied (replay).\n", submitID)
		} else {
			fmt.Printf("Submission %s applied.\n", submitID)
		}
		fmt.Printf("  Points:  +%d (balance %d)\n", res.PointsAwarded, res.Snapshot.PointsBalance)
		fmt.Printf("  CO2:     +%.2f kg\n", res.CO2SavedKg)
		for _, m := range res.CompletedMissions {
			fmt.Printf("  Mission completed: %s\n", m)
		}
		for _, b := range res.NewBadges {
			fmt.Printf("  Badge unlocked: %s\n", b)
		}
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new user",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.DB.RegisterUser(cmd.Context(), submitUser); err != nil {
			return err
		}
		fmt.Printf("Registered %s.\n", submitUser)
		return nil
	},
}
