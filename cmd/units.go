package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sikbang/recipe-harvester/internal/catalog"
)

func newUnitsCmd() *cobra.Command {
	var showLabels bool

	cmd := &cobra.Command{
		Use:   "units",
		Short: "Prints every work unit a crawl would process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			units := catalog.Enumerate(catalog.Default())
			for _, u := range units {
				if showLabels {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s/%s/%s/%s\n", u.Key(),
						u.Method.Label, u.Situation.Label, u.Ingredient.Label, u.DishType.Label)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), u.Key())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total: %d\n", len(units))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showLabels, "labels", false, "include human-readable labels")
	return cmd
}
