package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/reloop-eco/reloop/internal/app/catalog"
	"github.com/reloop-eco/reloop/internal/daemon"
	"github.com/reloop-eco/reloop/internal/domain"
)

func init() {
	catalogCmd.AddCommand(categoriesCmd)
	catalogCmd.AddCommand(missionsCmd)
	catalogCmd.AddCommand(badgesCmd)
	rootCmd.AddCommand(catalogCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the active rule catalog",
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List waste categories with rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}

		rules := cat.Rules()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tPOINTS/KG\tCO2/KG")
		for _, r := range sortedRules(rules) {
			fmt.Fprintf(w, "%s\t%.0f\t%.2f\n", r.CategoryName, r.PointsPerKg, r.CO2FactorPerKg)
		}
		return w.Flush()
	},
}

var missionsCmd = &cobra.Command{
	Use:   "missions",
	Short: "List stored missions with participant counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		list, err := d.DB.ListMissions(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No missions stored.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tTARGET\tREWARD\tPARTICIPANTS\tENDS\tOPEN")
		for _, m := range list {
			max := "-"
			if m.MaxParticipants > 0 {
				max = fmt.Sprintf("%d", m.MaxParticipants)
			}
			fmt.Fprintf(w, "%s\t%s\t%.0f\t%d\t%d/%s\t%s\t%v\n",
				m.ID, m.Type, m.TargetValue, m.PointsReward,
				m.Participants, max,
				m.EndDate.Format("2006-01-02"), m.Open,
			)
		}
		return w.Flush()
	},
}

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "List badge definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
		for _, b := range cat.Badges() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", b.ID, b.Name, b.Description)
		}
		return w.Flush()
	},
}

func loadCatalog() (*domain.Catalog, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Rewards.CatalogFile != "" {
		return catalog.Load(cfg.Rewards.CatalogFile)
	}
	return catalog.Default(), nil
}

func sortedRules(rules []domain.PointRule) []domain.PointRule {
	out := append([]domain.PointRule(nil), rules...)
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryName < out[j].CategoryName })
	return out
}
