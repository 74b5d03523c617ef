package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"navguard/internal/whitelist"
	api "navguard/pkg/api"
	"navguard/pkg/model"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		topFrame bool
		lockID   int
	)
	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Evaluate the navigation policy for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := opts.load()
			if err != nil {
				return err
			}
			svc := api.NewService(cfg, l)
			defer svc.Close()

			d := svc.Check(model.NavigationRequest{
				URL:            args[0],
				LockIdentifier: model.LockID(lockID),
				IsTopFrame:     topFrame,
			})

			out := cmd.OutOrStdout()
			normalized, ok := whitelist.Normalize(args[0])
			if !ok {
				normalized = "(unparseable)"
			}
			fmt.Fprintf(out, "url: %s\n", normalized)
			fmt.Fprintf(out, "whitelist: %s\n", strings.Join(whitelist.Compile(cfg.Policy.OriginWhitelist).Patterns(), ", "))

			verdict := "deny"
			if d.ShouldStart {
				verdict = "allow"
			}
			fmt.Fprintf(out, "verdict: %s\n", verdict)
			for _, eff := range d.Effects {
				fmt.Fprintf(out, "  %s\n", describeEffect(eff))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&topFrame, "top-frame", true, "Treat the request as a top-frame navigation")
	cmd.Flags().IntVar(&lockID, "lock", 0, "Lock identifier of the paused navigation (0 for none)")
	return cmd
}

func describeEffect(eff model.Effect) string {
	switch e := eff.(type) {
	case model.Acknowledge:
		return fmt.Sprintf("acknowledge lock=%d allow=%t", e.Lock, e.Allow)
	case model.LoadURL:
		return "load " + e.URL
	case model.OpenExternal:
		return fmt.Sprintf("open-external %s scheme=%s topFrame=%t", e.URL, e.Scheme, e.IsTopFrame)
	case model.Log:
		return fmt.Sprintf("log %s %s/%s: %s", e.Level, e.Kind, e.Verdict, e.Message)
	default:
		return fmt.Sprintf("%T", eff)
	}
}
