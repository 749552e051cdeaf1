package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newAuditCmd(a *app) *cobra.Command {
	var (
		resourceID string
		limit      int
	)
	cmd := &cobra.Command{
		Use:       "audit <vps|user|host|image>",
		Short:     "Show the newest audit records for a resource kind",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"vps", "user", "host", "image"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.ListAudit(ctx, args[0], resourceID, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tACTION\tID\tACTOR\tOK\tDETAILS")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
					r.CreatedAt.Format(time.RFC3339), r.Action, r.ResourceID, r.ActorID, r.Success, r.Details)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&resourceID, "id", "", "only records for this resource id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to show")
	return cmd
}
