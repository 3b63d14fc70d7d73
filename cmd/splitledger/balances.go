package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/splitledger/splitledger"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch the group from the server and replay queued offline edits",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withGroup(func(ctx context.Context, g *splitledger.Group) error {
			if err := g.Pull(ctx); err != nil {
				return err
			}
			if err := g.Flush(ctx); err != nil {
				return err
			}
			fmt.Printf("group %d: %d accounts, %d transactions\n",
				g.ID(), len(g.Accounts()), len(g.Transactions()))
			return nil
		})
	},
}

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Print every account's balance",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withGroup(func(ctx context.Context, g *splitledger.Group) error {
			if err := g.Pull(ctx); err != nil {
				return err
			}
			balances, err := g.Balances()
			if err != nil {
				return err
			}
			names := accountNames(g)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
			for _, a := range g.Accounts() {
				fmt.Fprintf(w, "%s\t%s\t\n", names[a.ID], balances[a.ID].Balance.StringFixed(2))
			}
			return w.Flush()
		})
	},
}

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Print the transfers that would settle all balances",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withGroup(func(ctx context.Context, g *splitledger.Group) error {
			if err := g.Pull(ctx); err != nil {
				return err
			}
			plan, err := g.SettlementPlan()
			if err != nil {
				return err
			}
			if len(plan) == 0 {
				fmt.Println("all settled")
				return nil
			}
			names := accountNames(g)
			for _, t := range plan {
				fmt.Printf("%s pays %s to %s\n", names[t.From], t.Amount.StringFixed(2), names[t.To])
			}
			return nil
		})
	},
}

func accountNames(g *splitledger.Group) map[int64]string {
	names := map[int64]string{}
	for _, a := range g.Accounts() {
		names[a.ID] = a.Name
	}
	return names
}

func init() {
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(balancesCmd)
	rootCmd.AddCommand(settleCmd)
}
