package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joshbot/chatsessions/internal/toolcatalog"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools of the configured tool servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		catalog, err := toolcatalog.Open(cmd.Context(), cfg.ToolServers)
		if err != nil {
			return err
		}
		defer catalog.Close()

		tools, err := catalog.ListTools(cmd.Context())
		if err != nil {
			return err
		}
		if done, err := render(cmd.OutOrStdout(), map[string]any{
			"servers": catalog.Status(),
			"tools":   tools,
		}); done {
			return err
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SERVER\tSTATUS\tTOOLS\tVERSION")
		for _, st := range catalog.Status() {
			status := string(st.Status)
			if st.Error != nil {
				status += ": " + *st.Error
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", st.Name, status, st.ToolCount, st.Version)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(out)
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SERVER\tTOOL\tDESCRIPTION")
		for _, t := range tools {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Server, t.Name, t.Description)
		}
		return tw.Flush()
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <server> <tool> [json-arguments]",
	Short: "Call one tool and print its text result",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var toolArgs map[string]any
		if len(args) == 3 {
			if err := json.Unmarshal([]byte(args[2]), &toolArgs); err != nil {
				return fmt.Errorf("invalid tool arguments: %w", err)
			}
		}

		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		catalog, err := toolcatalog.Open(cmd.Context(), cfg.ToolServers)
		if err != nil {
			return err
		}
		defer catalog.Close()

		result, err := catalog.CallTool(cmd.Context(), args[0], args[1], toolArgs)
		if err != nil {
			return err
		}
		if done, err := render(cmd.OutOrStdout(), result); done {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Text)
		if result.IsError {
			return fmt.Errorf("tool %s/%s reported an error", args[0], args[1])
		}
		return nil
	},
}

func init() {
	toolsCmd.PersistentFlags().StringVarP(&outputFormat, "format", "o", formatText, "Output format (text|json|yaml)")
	toolsCmd.AddCommand(toolsCallCmd)
}
