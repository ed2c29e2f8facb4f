package commands

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshbot/chatsessions/internal/export"
	"github.com/joshbot/chatsessions/pkg/types"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List demo and persisted sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		items := a.manager.ListSessionItems()
		if done, err := render(cmd.OutOrStdout(), items); done {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tUPDATED\tLABEL")
		for _, item := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				item.ID, item.Kind, item.Status,
				time.UnixMilli(item.Time.Updated).Format(time.DateTime), item.Label)
		}
		return tw.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session's history and options",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		content := a.manager.GetSessionContent(args[0])
		view := content.View()
		if done, err := render(cmd.OutOrStdout(), view); done {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s  [%s, %s]\n", view.Item.ID, view.Item.Label, view.Item.Kind, view.Item.Status)
		if view.ReadOnly {
			fmt.Fprintln(out, "read-only")
		}
		if len(view.Options) > 0 && !view.OptionsHidden {
			keys := make([]string, 0, len(view.Options))
			for k, v := range view.Options {
				keys = append(keys, k+"="+v)
			}
			sort.Strings(keys)
			fmt.Fprintf(out, "options: %s\n", strings.Join(keys, ", "))
		}
		fmt.Fprintln(out)
		for _, turn := range view.History {
			printTurn(cmd, turn)
		}
		return nil
	},
}

var exportFormat string

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a session's history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		content := a.manager.GetSessionContent(args[0])
		return exporter.Export(export.NewDocument(content.View(), time.Now()), cmd.OutOrStdout())
	},
}

func printTurn(cmd *cobra.Command, turn types.Turn) {
	out := cmd.OutOrStdout()
	if turn.Role == types.RoleRequest {
		fmt.Fprintf(out, "> %s\n", turn.Prompt)
		return
	}
	for _, part := range turn.Parts {
		switch {
		case part.Confirmation != nil:
			fmt.Fprintf(out, "? %s\n", part.Confirmation.Title)
		case part.Type == types.PartMarkdown:
			fmt.Fprintln(out, part.Text)
		default:
			fmt.Fprintf(out, "[%s] %s\n", part.Type, part.Text)
		}
	}
	fmt.Fprintln(out)
}

func init() {
	sessionsCmd.PersistentFlags().StringVarP(&outputFormat, "format", "o", formatText, "Output format (text|json|yaml)")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)

	sessionsExportCmd.Flags().StringVarP(&exportFormat, "as", "a", "markdown", "Export format")
	sessionsCmd.AddCommand(sessionsExportCmd)
}
