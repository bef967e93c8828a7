package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/benedict2310/storepulse/internal/events"
	"github.com/benedict2310/storepulse/internal/export"
	"github.com/benedict2310/storepulse/internal/store"
)

func newExportCmd(opts *storeOptions) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored event as CSV, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			envs, err := st.Range(cmd.Context(), store.RangeQuery{Window: events.AllTime, Order: store.Chronological})
			if err != nil {
				return err
			}

			if outPath == "" || outPath == "-" {
				return export.Write(cmd.OutOrStdout(), envs)
			}
			if err := writeExportFile(outPath, envs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d events to %s\n", len(envs), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")

	return cmd
}

func writeExportFile(path string, envs []events.Envelope) (retErr error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("close export file %s: %w", path, err)
		}
	}()
	return export.Write(f, envs)
}

func newImportCmd(opts *storeOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Append events from a CSV export, keeping their original timestamps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			envs, err := export.Read(in)
			if err != nil {
				return usageError(err)
			}

			st, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			for i, env := range envs {
				if _, err := st.Append(cmd.Context(), env); err != nil {
					return fmt.Errorf("import row %d: %w", i+1, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d events\n", len(envs))
			return nil
		},
	}
}
