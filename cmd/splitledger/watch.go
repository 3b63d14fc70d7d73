package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the group and print balances whenever they change",
	RunE: func(_ *cobra.Command, _ []string) error {
		if cfg.PushURL == "" {
			return fmt.Errorf("watch needs push_url configured")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c := newClient()
		if err := c.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = c.Close(context.Background()) }()

		g, err := c.Group(ctx, cfg.GroupID)
		if err != nil {
			return err
		}
		if err := g.Pull(ctx); err != nil {
			return err
		}

		// Server push folds changes into the store as they arrive; polling
		// the revision is enough to know when to reprint.
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		var last uint64
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				rev := g.Revision()
				if rev == last {
					continue
				}
				last = rev
				balances, err := g.Balances()
				if err != nil {
					fmt.Fprintln(os.Stderr, "balance computation failed:", err)
					continue
				}
				fmt.Printf("--- %s\n", time.Now().Format(time.TimeOnly))
				names := accountNames(g)
				for _, a := range g.Accounts() {
					fmt.Printf("%s: %s\n", names[a.ID], balances[a.ID].Balance.StringFixed(2))
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "How often to check for changes.")
	rootCmd.AddCommand(watchCmd)
}
