package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTemplatesCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect discovered document templates",
	}
	var receipt bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List template choices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lister, err := deps.Templates()
			if err != nil {
				return err
			}
			choices, err := lister.Choices(cmd.Context(), receipt)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VALUE\tLABEL")
			for _, c := range choices {
				fmt.Fprintf(tw, "%s\t%s\n", c.Value, c.Label)
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&receipt, "receipt", false, "list receipt templates instead of invoice templates")
	cmd.AddCommand(list)
	return cmd
}
