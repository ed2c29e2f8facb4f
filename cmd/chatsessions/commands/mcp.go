package commands

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/joshbot/chatsessions/pkg/mcpserver/browser"
	"github.com/joshbot/chatsessions/pkg/mcpserver/github"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run a built-in tool server over stdio",
	Long: `Run one of the built-in mock tool servers on stdin/stdout so it can be
registered as a "stdio" tool server by another host.`,
}

var mcpGitHubCmd = &cobra.Command{
	Use:   "github",
	Short: "Serve the mock GitHub tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.ServeStdio(github.NewServer())
	},
}

var mcpBrowserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Serve the mock browser tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.ServeStdio(browser.NewServer())
	},
}

func init() {
	mcpCmd.AddCommand(mcpGitHubCmd)
	mcpCmd.AddCommand(mcpBrowserCmd)
}
