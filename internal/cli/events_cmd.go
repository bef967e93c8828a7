package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/benedict2310/storepulse/internal/dedup"
	"github.com/benedict2310/storepulse/internal/events"
	"github.com/benedict2310/storepulse/internal/output"
	"github.com/benedict2310/storepulse/internal/store"
)

func newEventsCmd(opts *storeOptions) *cobra.Command {
	var (
		days       string
		limit      int
		ascending  bool
		outputFlag string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent events with repeated product views collapsed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := events.ParseListWindow(days)
			if err != nil {
				return usageError(err)
			}
			if limit <= 0 {
				return usageError(fmt.Errorf("--limit must be > 0"))
			}
			format, err := output.ParseFormat(outputFlag, output.FormatTable)
			if err != nil {
				return usageError(err)
			}

			st, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			envs, err := st.Range(cmd.Context(), store.RangeQuery{
				Window: window,
				Limit:  limit,
				Order:  store.NewestFirst,
			})
			if err != nil {
				return err
			}
			envs = dedup.CollapseListViews(envs)
			if ascending {
				slices.Reverse(envs)
			}

			if format != output.FormatTable {
				return output.WriteStructured(cmd.OutOrStdout(), format, envs)
			}
			rows := make([][]string, 0, len(envs))
			for _, env := range envs {
				rows = append(rows, []string{
					env.OccurredAt.UTC().Format(time.RFC3339),
					output.OrNone(env.Type()),
					output.OrNone(eventDetail(env.Payload)),
					output.OrNone(env.ClientIP),
					output.Truncate(output.OrNone(env.UserAgent), 40),
				})
			}
			return output.WriteTable(cmd.OutOrStdout(), []string{"TIME", "TYPE", "DETAIL", "IP", "USER AGENT"}, rows)
		},
	}

	cmd.Flags().StringVar(&days, "days", events.DefaultListWindow.Label, "Trailing window in days (1|7|30|90|180|365|all)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum events to read")
	cmd.Flags().BoolVar(&ascending, "asc", false, "Print oldest first")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "table", "Output format (table|json|yaml)")

	return cmd
}

// eventDetail picks the most telling field for a one-line listing.
func eventDetail(p events.Payload) string {
	for _, key := range []string{"path", "productId", "step", "message", "formId", "mediaType"} {
		if v := p.Text(key); v != "" {
			return output.Truncate(v, 48)
		}
	}
	return ""
}
