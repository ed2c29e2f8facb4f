package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List the option groups offered per session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		groups := a.manager.OptionGroups()
		if done, err := render(cmd.OutOrStdout(), groups); done {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "GROUP\tITEM\tNAME")
		for _, g := range groups {
			for _, item := range g.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", g.ID, item.ID, item.Name)
			}
		}
		return tw.Flush()
	},
}

func init() {
	optionsCmd.Flags().StringVarP(&outputFormat, "format", "o", formatText, "Output format (text|json|yaml)")
}
