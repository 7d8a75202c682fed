// autoselectctl is a development tool for poking the query cache
// engine against a storefront API: run queries, warm the cache,
// invalidate keys and execute raw mutations, printing JSON results.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/builtwitharvadai/autoselect-querycache/config"
	"github.com/builtwitharvadai/autoselect-querycache/di"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configDir string
	baseURL   string
	dealerID  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "autoselectctl",
		Short:         "Query cache engine dev tool for the AutoSelect storefront",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configDir, "config", "", "config directory (config.yaml + <env>.yaml)")
	cmd.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "storefront API base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.dealerID, "dealer-id", "", "dealer id header (overrides config)")

	cmd.AddCommand(
		newQueryCmd(flags),
		newPrefetchCmd(flags),
		newInvalidateCmd(flags),
		newMutateCmd(flags),
	)
	return cmd
}

// setupApp builds the full service graph from config dir, env and
// command-line overrides.
func setupApp(flags *rootFlags) (*di.App, error) {
	overrides := map[string]any{}
	if flags.baseURL != "" {
		overrides["backend.base_url"] = flags.baseURL
	}
	if flags.dealerID != "" {
		overrides["backend.dealer_id"] = flags.dealerID
	}

	app := di.NewApp(
		di.WithName("autoselectctl"),
		di.WithConfig(config.LoadOptions{
			ConfigDir: flags.configDir,
			EnvPrefix: "AUTOSELECT",
			Flags:     overrides,
		}),
	)
	if err := app.Setup(); err != nil {
		return nil, err
	}
	return app, nil
}
