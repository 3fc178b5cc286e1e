package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

const redacted = "********"

func (a *app) showConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show-config",
		Short: "Print the effective configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			if cfg.Generation.APIKey != "" {
				cfg.Generation.APIKey = redacted
			}
			if cfg.Redis.Password != "" {
				cfg.Redis.Password = redacted
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}
