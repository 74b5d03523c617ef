package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"navguard/internal/storage"
	api "navguard/pkg/api"
	"navguard/pkg/model"
)

func newJournalCmd(opts *rootOptions) *cobra.Command {
	var (
		viewID string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent policy decisions from the audit journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := opts.load()
			if err != nil {
				return err
			}
			svc := api.NewService(cfg, l)
			defer svc.Close()

			recs, err := svc.Recent(cmd.Context(), model.ViewID(viewID), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No decisions recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tVIEW\tKIND\tVERDICT\tURL\tDETAIL")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.CreatedAt.Format("2006-01-02 15:04:05"), r.ViewID, r.Kind, r.Verdict, r.URL, r.Detail)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&viewID, "view", "", "Only show decisions of this view")
	cmd.Flags().IntVar(&limit, "limit", storage.DefaultRecentLimit, "Maximum number of records")
	return cmd
}
