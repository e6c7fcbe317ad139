package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage local channels",
	}
	cmd.AddCommand(newChannelAddCmd(), newChannelRemoveCmd(), newChannelListCmd())
	return cmd
}

func newChannelRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <label>",
		Short: "Remove a locally added channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			return m.RemoveChannel(cmd.Context(), args[0])
		},
	}
}

func newChannelAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <label>",
		Short: "Add a channel from the product tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := m.RefreshRepositories(ctx); err != nil {
				return err
			}
			if err := m.UpdateProducts(ctx); err != nil {
				return err
			}
			return m.AddChannel(ctx, args[0])
		},
	}
}

func newChannelListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List channels known to the product tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := m.RefreshRepositories(ctx); err != nil {
				return err
			}
			if err := m.UpdateProducts(ctx); err != nil {
				return err
			}
			channels, err := m.ListChannels(ctx)
			if err != nil {
				return err
			}
			for _, ch := range channels {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s %s\n", ch.Status, ch.Label, ch.Name)
			}
			return nil
		},
	}
}
