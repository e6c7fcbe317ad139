package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/contentsync/internal/config"
	"github.com/agentstation/contentsync/pkg/logging"
	"github.com/agentstation/contentsync/pkg/scc"
)

func newProductsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Manage the local product catalog",
	}
	cmd.AddCommand(newProductsUpdateCmd(), newProductsListCmd())
	return cmd
}

func newProductsUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Merge products and the product tree into the local catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if file := config.ChannelFamiliesFile(); file != "" {
				families, err := scc.LoadChannelFamilies(file)
				if err != nil {
					return err
				}
				if err := m.UpdateChannelFamilies(ctx, families); err != nil {
					return err
				}
			}

			logging.FromContext(ctx).Info().Msg("Updating products")
			return m.UpdateProducts(ctx)
		},
	}
}

func newProductsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List base products and their availability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := m.UpdateProducts(ctx); err != nil {
				return err
			}
			products, err := m.ListProducts(ctx)
			if err != nil {
				return err
			}
			for _, p := range products {
				marker := " "
				if p.Available {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d %s %s %s\n",
					marker, p.Product.ID, p.Product.Name, p.Product.Version, p.Product.Arch)
			}
			return nil
		},
	}
}
