package cli

import "github.com/spf13/cobra"

func newSummaryCmd(rc *RootConfig) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Portfolio-level totals across every trade",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			s, err := journal.Summary(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out(cmd), s)
			}
			return printSummary(out(cmd), s)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
