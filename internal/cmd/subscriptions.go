package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/contentsync/pkg/logging"
)

func newSubscriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "Manage cached subscription data",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Refresh subscriptions and order items for every credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logging.FromContext(ctx).Info().Msg("Refreshing subscriptions")
			return m.SyncSubscriptions(ctx)
		},
	})
	return cmd
}
