package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/benedict2310/storepulse/internal/events"
	"github.com/benedict2310/storepulse/internal/output"
	"github.com/benedict2310/storepulse/internal/store"
	"github.com/benedict2310/storepulse/internal/summary"
)

func newSummaryCmd(opts *storeOptions) *cobra.Command {
	var (
		rangeFlag  string
		maxRows    int
		outputFlag string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard summary for a trailing window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := events.ParseSummaryWindow(rangeFlag)
			if err != nil {
				return usageError(err)
			}
			if maxRows < 0 {
				return usageError(fmt.Errorf("--max-rows must be >= 0"))
			}
			format, err := output.ParseFormat(outputFlag, output.FormatJSON)
			if err != nil {
				return usageError(err)
			}

			st, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			now := time.Now()
			envs, err := st.Range(cmd.Context(), store.RangeQuery{
				Window: window,
				Now:    now,
				Limit:  maxRows,
				Order:  store.NewestFirst,
			})
			if err != nil {
				return err
			}

			sum := summary.Build(window, now, envs)
			if format == output.FormatTable {
				return writeSummaryTable(cmd.OutOrStdout(), sum)
			}
			return output.WriteStructured(cmd.OutOrStdout(), format, sum)
		},
	}

	cmd.Flags().StringVar(&rangeFlag, "range", events.DefaultSummaryWindow.Label, "Trailing window (24h|1d|7d|30d|90d|180d|365d)")
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "Read at most this many events (0 means no cap)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "json", "Output format (json|yaml|table)")

	return cmd
}

func writeSummaryTable(w io.Writer, s summary.Summary) error {
	rows := [][]string{
		{"range", s.Range},
		{"events", strconv.Itoa(s.TotalEvents)},
		{"sessions", strconv.Itoa(s.Sessions)},
		{"visitors", strconv.Itoa(s.Visitors)},
		{"pageviews", strconv.Itoa(s.Funnel.Pageviews)},
		{"product views", strconv.Itoa(s.Funnel.ProductViews)},
		{"add to cart", strconv.Itoa(s.Funnel.AddToCart)},
		{"purchases", strconv.Itoa(s.Funnel.Purchases)},
		{"view to cart %", formatFloat(s.Conversion.ViewToCart)},
		{"cart to purchase %", formatFloat(s.Conversion.CartToPurchase)},
		{"pageview to purchase %", formatFloat(s.Conversion.PageviewToPurchase)},
		{"active carts", fmt.Sprintf("%d (%s)", s.ActiveCarts.Count, formatFloat(s.ActiveCarts.Value))},
		{"errors", fmt.Sprintf("%d (%d payment)", s.Errors.Total, s.Errors.Payment)},
		{"avg lcp ms", formatOptional(s.Performance.AvgLCP)},
	}
	for i, p := range s.TopPages {
		rows = append(rows, []string{fmt.Sprintf("top page %d", i+1), fmt.Sprintf("%s (%d)", p.Key, p.Count)})
	}
	for i, p := range s.TopProducts {
		rows = append(rows, []string{fmt.Sprintf("top product %d", i+1), fmt.Sprintf("%s (%d)", p.ProductID, p.Views)})
	}
	return output.WriteTable(w, []string{"METRIC", "VALUE"}, rows)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v)
}
