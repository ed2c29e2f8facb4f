// Package browser provides a mocked browser-automation MCP server.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Name is the server name reported during initialization.
const Name = "playwright-browser"

// NewServer creates a new MCP server with the mocked browser tools.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(mcp.NewTool("navigate",
		mcp.WithDescription("Navigate to a URL"),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL to navigate to")),
	), navigate)

	s.AddTool(mcp.NewTool("click",
		mcp.WithDescription("Perform click on a web page"),
		elementParam(), refParam(),
		mcp.WithString("button", mcp.Description("Button to click, defaults to left"), mcp.Enum("left", "right", "middle")),
		mcp.WithBoolean("doubleClick", mcp.Description("Whether to perform a double click instead of a single click")),
	), click)

	s.AddTool(mcp.NewTool("type",
		mcp.WithDescription("Type text into editable element"),
		elementParam(), refParam(),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to type into the element")),
		mcp.WithBoolean("slowly", mcp.Description("Whether to type one character at a time")),
		mcp.WithBoolean("submit", mcp.Description("Whether to submit entered text (press Enter after)")),
	), typeText)

	s.AddTool(mcp.NewTool("snapshot",
		mcp.WithDescription("Capture accessibility snapshot of the current page"),
	), snapshot)

	s.AddTool(mcp.NewTool("take_screenshot",
		mcp.WithDescription("Take a screenshot of the current page"),
		mcp.WithString("element", mcp.Description("Human-readable element description")),
		mcp.WithString("filename", mcp.Description("File name to save the screenshot to")),
		mcp.WithBoolean("fullPage", mcp.Description("When true, takes a screenshot of the full scrollable page")),
		mcp.WithString("type", mcp.Description("Image format for the screenshot"), mcp.Enum("png", "jpeg"), mcp.DefaultString("png")),
	), takeScreenshot)

	s.AddTool(mcp.NewTool("press_key",
		mcp.WithDescription("Press a key on the keyboard"),
		mcp.WithString("key", mcp.Required(), mcp.Description("Name of the key to press or a character to generate, such as `ArrowLeft` or `a`")),
	), pressKey)

	return s
}

func elementParam() mcp.ToolOption {
	return mcp.WithString("element", mcp.Required(), mcp.Description("Human-readable element description"))
}

func refParam() mcp.ToolOption {
	return mcp.WithString("ref", mcp.Required(), mcp.Description("Exact target element reference from the page snapshot"))
}

func navigate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil || url == "" {
		return mcp.NewToolResultError("url is required"), nil
	}
	return mcp.NewToolResultText("Mock browser navigation to: " + url), nil
}

func click(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	element := request.GetString("element", "")
	ref := request.GetString("ref", "")
	if element == "" || ref == "" {
		return mcp.NewToolResultError("element and ref are required"), nil
	}
	kind := request.GetString("button", "left")
	if request.GetBool("doubleClick", false) {
		kind = "double " + kind
	}
	return mcp.NewToolResultText(fmt.Sprintf("Mock %s click on element: %s (ref: %s)", kind, element, ref)), nil
}

func typeText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	element := request.GetString("element", "")
	ref := request.GetString("ref", "")
	text := request.GetString("text", "")
	if element == "" || ref == "" || text == "" {
		return mcp.NewToolResultError("element, ref, and text are required"), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Mock typing %q into element: %s (ref: %s)", text, element, ref)
	if request.GetBool("slowly", false) {
		sb.WriteString(" slowly")
	}
	if request.GetBool("submit", false) {
		sb.WriteString(" with submit")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func snapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("Mock accessibility snapshot captured"), nil
}

func takeScreenshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	sb.WriteString("Mock screenshot taken")
	if element := request.GetString("element", ""); element != "" {
		sb.WriteString(" of element: " + element)
	}
	if request.GetBool("fullPage", false) {
		sb.WriteString(" (full page)")
	}
	sb.WriteString(" as " + request.GetString("type", "png"))
	if filename := request.GetString("filename", ""); filename != "" {
		sb.WriteString(" saved to: " + filename)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func pressKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := request.GetString("key", "")
	if key == "" {
		return mcp.NewToolResultError("key is required"), nil
	}
	return mcp.NewToolResultText("Mock key press: " + key), nil
}
