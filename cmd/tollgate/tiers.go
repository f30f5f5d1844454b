package main

import (
	"fmt"
	"sort"

	"github.com/artpar/tollgate/config"
	"github.com/artpar/tollgate/domain/tier"
	"github.com/spf13/cobra"
)

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Show the tier catalog and its resource limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return err
		}

		catalog, err := cfg.Catalog()
		if err != nil {
			return fmt.Errorf("build catalog: %w", err)
		}

		ids := catalog.IDs()
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			t, err := catalog.Get(id)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s)\n", t.ID, t.Name)

			resources := make([]tier.Resource, 0, len(t.Limits))
			for r := range t.Limits {
				resources = append(resources, r)
			}
			sort.Slice(resources, func(i, j int) bool { return resources[i] < resources[j] })
			for _, r := range resources {
				limit := t.Limits[r]
				if limit == tier.Unlimited {
					fmt.Printf("  %-16s unlimited\n", r)
				} else {
					fmt.Printf("  %-16s %d per period\n", r, limit)
				}
			}

			if price, ok := cfg.Billing.PriceIDs[string(t.ID)]; ok {
				fmt.Printf("  price: %s\n", price)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tiersCmd)
}
