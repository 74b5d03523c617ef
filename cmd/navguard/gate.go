package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"navguard/internal/version"
	api "navguard/pkg/api"
	"navguard/pkg/model"
)

func newGateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gate <version> [spec]",
		Short: "Check a runtime version against the configured minimum and the platform floor",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := opts.load()
			if err != nil {
				return err
			}
			spec := ""
			if len(args) == 2 {
				spec = args[1]
				if !version.Valid(spec) {
					return fmt.Errorf("invalid version spec %q", spec)
				}
			}
			svc := api.NewService(cfg, l)
			defer svc.Close()

			res := svc.CheckGate(args[0], spec)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (platform %s, floor %s)\n", res.Status, args[0], cfg.Policy.Platform, version.HardMinimum(model.Platform(cfg.Policy.Platform)))
			if res.Reason != "" {
				fmt.Fprintf(out, "  %s\n", res.Reason)
			}
			return nil
		},
	}
}
