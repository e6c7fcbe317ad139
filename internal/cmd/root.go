// Package cmd implements the contentsync CLI commands.
package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentstation/contentsync/internal/config"
	"github.com/agentstation/contentsync/pkg/logging"
)

// New builds the root command with all subcommands attached.
func New() *cobra.Command {
	root := &cobra.Command{
		Use:           "contentsync",
		Short:         "Synchronize the local product catalog with the remote catalog service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Init(); err != nil {
				return err
			}
			ctx := logging.WithRunID(cmd.Context(), uuid.NewString())
			cmd.SetContext(ctx)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("scc-url", config.DefaultSCCURL, "catalog service base URL")
	flags.String("fromdir", "", "read catalog data from an offline mirror directory")
	flags.String("mirror", "", "mirror URL overriding content locations")
	cobra.CheckErr(viper.BindPFlag(config.KeySCCURL, flags.Lookup("scc-url")))
	cobra.CheckErr(viper.BindPFlag(config.KeyFromDir, flags.Lookup("fromdir")))
	cobra.CheckErr(viper.BindPFlag(config.KeyMirror, flags.Lookup("mirror")))

	root.AddCommand(
		newRefreshCmd(),
		newProductsCmd(),
		newChannelCmd(),
		newSubscriptionsCmd(),
	)
	return root
}

// Execute runs the CLI with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	root := New()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
