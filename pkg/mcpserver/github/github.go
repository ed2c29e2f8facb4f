// Package github provides a mocked GitHub MCP server. Every tool returns
// canned text built from its arguments; nothing touches the network.
package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Name is the server name reported during initialization.
const Name = "github-mcp-server"

// NewServer creates a new MCP server with the mocked GitHub tools.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(mcp.NewTool("get_file_contents",
		mcp.WithDescription("Get the contents of a file or directory from a GitHub repository"),
		ownerParam(), repoParam(),
		mcp.WithString("path", mcp.Description("Path to file/directory"), mcp.DefaultString("/")),
		mcp.WithString("ref", mcp.Description("Git ref (branch, tag, commit SHA)")),
	), getFileContents)

	s.AddTool(mcp.NewTool("list_issues",
		mcp.WithDescription("List issues in a GitHub repository"),
		ownerParam(), repoParam(),
		mcp.WithString("state", mcp.Description("Filter by state"), mcp.Enum("OPEN", "CLOSED")),
		mcp.WithArray("labels", mcp.Description("Filter by labels"), mcp.Items(map[string]any{"type": "string"})),
		perPageParam(),
	), listIssues)

	s.AddTool(mcp.NewTool("get_issue",
		mcp.WithDescription("Get details of a specific issue in a GitHub repository"),
		ownerParam(), repoParam(),
		mcp.WithNumber("issue_number", mcp.Required(), mcp.Description("The number of the issue")),
	), getIssue)

	s.AddTool(mcp.NewTool("list_pull_requests",
		mcp.WithDescription("List pull requests in a GitHub repository"),
		ownerParam(), repoParam(),
		mcp.WithString("state", mcp.Description("Filter by state"), mcp.Enum("open", "closed", "all")),
		mcp.WithString("base", mcp.Description("Filter by base branch")),
		mcp.WithString("head", mcp.Description("Filter by head user/org and branch")),
		mcp.WithString("sort", mcp.Description("Sort by"), mcp.Enum("created", "updated", "popularity", "long-running")),
		mcp.WithString("direction", mcp.Description("Sort direction"), mcp.Enum("asc", "desc")),
		perPageParam(),
	), listPullRequests)

	s.AddTool(mcp.NewTool("get_pull_request",
		mcp.WithDescription("Get details of a specific pull request in a GitHub repository"),
		ownerParam(), repoParam(),
		mcp.WithNumber("pullNumber", mcp.Required(), mcp.Description("Pull request number")),
	), getPullRequest)

	s.AddTool(mcp.NewTool("search_repositories",
		mcp.WithDescription("Find GitHub repositories by name, description, readme, topics, or other metadata"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Repository search query with advanced search syntax")),
		perPageParam(),
	), searchRepositories)

	return s
}

func ownerParam() mcp.ToolOption {
	return mcp.WithString("owner", mcp.Required(), mcp.Description("Repository owner (username or organization)"))
}

func repoParam() mcp.ToolOption {
	return mcp.WithString("repo", mcp.Required(), mcp.Description("Repository name"))
}

func perPageParam() mcp.ToolOption {
	return mcp.WithNumber("perPage", mcp.Description("Results per page"), mcp.Min(1), mcp.Max(100))
}

// repository extracts the required owner and repo arguments.
func repository(request mcp.CallToolRequest) (string, error) {
	owner := request.GetString("owner", "")
	repo := request.GetString("repo", "")
	if owner == "" || repo == "" {
		return "", fmt.Errorf("owner and repo are required")
	}
	return owner + "/" + repo, nil
}

func getFileContents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	full, err := repository(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := fmt.Sprintf("Mock file contents for %s%s", full, request.GetString("path", "/"))
	if ref := request.GetString("ref", ""); ref != "" {
		text += " at " + ref
	}
	return mcp.NewToolResultText(text), nil
}

func listIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	full, err := repository(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	labels := "none"
	if l := request.GetStringSlice("labels", nil); len(l) > 0 {
		labels = strings.Join(l, ",")
	}
	return mcp.NewToolResultText(fmt.Sprintf("Mock issues list for %s (state: %s, labels: %s, perPage: %d)",
		full, request.GetString("state", "all"), labels, request.GetInt("perPage", 30))), nil
}

func getIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	full, err := repository(request)
	number := request.GetInt("issue_number", 0)
	if err != nil || number == 0 {
		return mcp.NewToolResultError("owner, repo, and issue_number are required"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Mock issue details for %s#%d", full, number)), nil
}

func listPullRequests(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	full, err := repository(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Mock pull requests list for %s (state: %s, base: %s, head: %s, sort: %s, direction: %s, perPage: %d)",
		full,
		request.GetString("state", "open"),
		request.GetString("base", "any"),
		request.GetString("head", "any"),
		request.GetString("sort", "created"),
		request.GetString("direction", "desc"),
		request.GetInt("perPage", 30),
	)), nil
}

func getPullRequest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	full, err := repository(request)
	number := request.GetInt("pullNumber", 0)
	if err != nil || number == 0 {
		return mcp.NewToolResultError("owner, repo, and pullNumber are required"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Mock pull request details for %s#%d", full, number)), nil
}

func searchRepositories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Mock repository search results for %q (perPage: %d)",
		query, request.GetInt("perPage", 30))), nil
}
