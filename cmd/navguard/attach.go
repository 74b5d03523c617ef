package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"navguard/internal/executor"
	"navguard/internal/lifecycle"
	api "navguard/pkg/api"
	"navguard/pkg/model"
)

func newAttachCmd(opts *rootOptions) *cobra.Command {
	var (
		devtools string
		target   string
		startURL string
	)
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Guard a live Chromium target until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := opts.load()
			if err != nil {
				return err
			}
			if devtools != "" {
				cfg.Bridge.DevToolsURL = devtools
			}
			if target != "" {
				cfg.Bridge.Target = target
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			svc := api.NewService(cfg, l)
			defer svc.Close()

			id := svc.CreateView(api.ViewConfig{
				StartURL: startURL,
				Host: executor.Host{
					OnMessage: func(msg model.WebViewMessage) {
						fmt.Fprintf(out, "message\t%s\t%s\n", msg.URL, msg.Data)
					},
					OnOpenWindow: func(targetURL string) {
						fmt.Fprintf(out, "open-window\t%s\n", targetURL)
					},
				},
				Hooks: lifecycle.Hooks{
					OnError: func(n *lifecycle.ErrorNotice) {
						fmt.Fprintf(out, "load-error\t%s\t%d %s\n", n.Event.URL, n.Event.Error.Code, n.Event.Error.Description)
					},
				},
			})
			events, err := svc.SubscribeEvents(id)
			if err != nil {
				return err
			}
			if err := svc.Attach(ctx, id, cfg.Bridge.Target); err != nil {
				return err
			}
			done, err := svc.Done(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "guarding view %s via %s\n", id, cfg.Bridge.DevToolsURL)

			for {
				select {
				case evt := <-events:
					fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", evt.Event, evt.Verdict, evt.URL, evt.Detail)
				case <-done:
					return fmt.Errorf("target connection closed")
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().StringVar(&devtools, "devtools", "", "DevTools HTTP endpoint (default from config)")
	cmd.Flags().StringVar(&target, "target", "", "Page target id (default: first page)")
	cmd.Flags().StringVar(&startURL, "url", "", "Initial URL, replaced by about:blank when not whitelisted")
	return cmd
}
