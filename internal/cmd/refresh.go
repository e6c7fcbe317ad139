package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/contentsync/pkg/logging"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh repositories and their authentication records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logging.FromContext(ctx).Info().Msg("Refreshing repositories")
			return m.RefreshRepositories(ctx)
		},
	}
}
