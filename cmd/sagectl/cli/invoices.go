package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newRenderCommand(deps Deps) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render <slug>",
		Short: "Render an invoice to HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, done, err := deps.Invoices(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			_, html, err := ops.RenderBySlug(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), html)
				return err
			}
			return os.WriteFile(out, []byte(html), 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the document to a file instead of stdout")
	return cmd
}

func newRecalcCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc <invoice-id>...",
		Short: "Recalculate the expense totals of invoices",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid invoice id %q", arg)
				}
				ids = append(ids, id)
			}
			ops, done, err := deps.Invoices(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			for _, id := range ids {
				if err := ops.RecalculateTotals(cmd.Context(), id); err != nil {
					return fmt.Errorf("invoice %d: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recalculated invoice %d\n", id)
			}
			return nil
		},
	}
}

func newSweepCommand(deps Deps) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Mark unpaid invoices past their due date as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := time.Now().UTC()
			if asOf != "" {
				parsed, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of date, use YYYY-MM-DD: %w", err)
				}
				ref = parsed
			}
			ops, done, err := deps.Invoices(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			ids, err := ops.SweepOverdue(cmd.Context(), ref)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d invoice(s) overdue as of %s\n", len(ids), ref.Format(time.DateOnly))
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "reference date (YYYY-MM-DD), defaults to today")
	return cmd
}
