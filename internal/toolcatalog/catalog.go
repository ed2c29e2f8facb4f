package toolcatalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joshbot/chatsessions/internal/logging"
	"github.com/joshbot/chatsessions/pkg/mcpserver/browser"
	"github.com/joshbot/chatsessions/pkg/mcpserver/github"
	"github.com/joshbot/chatsessions/pkg/types"
	"github.com/mark3labs/mcp-go/server"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 5 * time.Second

	// Stdio servers are restarted this many times when the handshake fails.
	connectRetries         = 2
	connectInitialInterval = 250 * time.Millisecond
)

// ErrServerNotFound is returned when a tool call names an unknown server.
var ErrServerNotFound = errors.New("tool server not found")

// Builtins maps built-in server names to their constructors.
var Builtins = map[string]func() *server.MCPServer{
	"github":  github.NewServer,
	"browser": browser.NewServer,
}

// DefaultServers is the configuration used when none is given: every
// built-in server, connected in-process.
func DefaultServers() map[string]*types.ToolServerConfig {
	servers := make(map[string]*types.ToolServerConfig, len(Builtins))
	for name := range Builtins {
		servers[name] = &types.ToolServerConfig{Type: TransportBuiltin, Builtin: name}
	}
	return servers
}

// Catalog manages tool server connections using the MCP SDK client.
type Catalog struct {
	mu      sync.RWMutex
	servers map[string]*toolServer
	client  *sdkmcp.Client
	log     zerolog.Logger
}

type toolServer struct {
	name    string
	config  *types.ToolServerConfig
	session *sdkmcp.ClientSession
	tools   []types.ToolInfo
	status  Status
	err     string
	version string
	timeout time.Duration

	// in-process servers only
	stop func()
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		servers: make(map[string]*toolServer),
		client: sdkmcp.NewClient(&sdkmcp.Implementation{
			Name:    "chatsessions",
			Version: "1.0.0",
		}, nil),
		log: logging.Component("toolcatalog"),
	}
}

// Open creates a catalog and connects every configured server. A server
// that fails to connect is kept with a failed status; Open itself only
// fails when ctx is done.
func Open(ctx context.Context, servers map[string]*types.ToolServerConfig) (*Catalog, error) {
	if len(servers) == 0 {
		servers = DefaultServers()
	}

	c := New()
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := c.AddServer(ctx, name, servers[name]); err != nil {
			if ctx.Err() != nil {
				c.Close()
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Str(logging.FieldServer, name).Msg("tool server unavailable")
		}
	}
	return c, nil
}

// AddServer connects a configured server.
func (c *Catalog) AddServer(ctx context.Context, name string, config *types.ToolServerConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.servers[name]; ok {
		return fmt.Errorf("server already exists: %s", name)
	}

	ts := &toolServer{name: name, config: config, timeout: defaultTimeout}
	if config.Timeout > 0 {
		ts.timeout = time.Duration(config.Timeout) * time.Millisecond
	}
	if !config.IsEnabled() {
		ts.status = StatusDisabled
		c.servers[name] = ts
		return nil
	}

	var err error
	switch config.Type {
	case TransportBuiltin, "":
		builtin := config.Builtin
		if builtin == "" {
			builtin = name
		}
		newServer, ok := Builtins[builtin]
		if !ok {
			err = fmt.Errorf("unknown builtin server: %s", builtin)
			break
		}
		err = c.connectInProcess(ctx, ts, newServer())
	case TransportStdio:
		err = c.connectCommand(ctx, ts)
	default:
		err = fmt.Errorf("unknown transport type: %s", config.Type)
	}

	if err != nil {
		ts.status = StatusFailed
		ts.err = err.Error()
		c.servers[name] = ts
		return err
	}

	ts.status = StatusConnected
	c.servers[name] = ts
	c.log.Debug().Str(logging.FieldServer, name).Int("tools", len(ts.tools)).Msg("tool server connected")
	return nil
}

// AddInProcess connects an MCP server running in this process.
func (c *Catalog) AddInProcess(ctx context.Context, name string, srv *server.MCPServer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.servers[name]; ok {
		return fmt.Errorf("server already exists: %s", name)
	}
	ts := &toolServer{
		name:    name,
		config:  &types.ToolServerConfig{Type: TransportBuiltin},
		timeout: defaultTimeout,
	}
	if err := c.connectInProcess(ctx, ts, srv); err != nil {
		return err
	}
	ts.status = StatusConnected
	c.servers[name] = ts
	return nil
}

// connectInProcess serves srv over a pipe pair and connects the client to
// the other end.
func (c *Catalog) connectInProcess(ctx context.Context, ts *toolServer, srv *server.MCPServer) error {
	serverReader, clientWriter := io.Pipe()
	clientReader, serverWriter := io.Pipe()

	listenCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.NewStdioServer(srv).Listen(listenCtx, serverReader, serverWriter); err != nil && listenCtx.Err() == nil {
			c.log.Debug().Err(err).Str(logging.FieldServer, ts.name).Msg("in-process tool server stopped")
		}
	}()

	ts.stop = func() {
		cancel()
		clientWriter.Close()
		serverWriter.Close()
		<-done
	}

	transport := &sdkmcp.IOTransport{Reader: clientReader, Writer: clientWriter}
	if err := c.connect(ctx, ts, transport); err != nil {
		ts.stop()
		ts.stop = nil
		return err
	}
	return nil
}

// connectCommand starts the configured command and speaks MCP over its
// stdin/stdout. A command that starts but fails the handshake is retried
// with exponential backoff.
func (c *Catalog) connectCommand(ctx context.Context, ts *toolServer) error {
	if len(ts.config.Command) == 0 {
		return fmt.Errorf("stdio server %s has no command", ts.name)
	}
	if _, err := exec.LookPath(ts.config.Command[0]); err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = connectInitialInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		cmd := exec.Command(ts.config.Command[0], ts.config.Command[1:]...)
		cmd.Env = os.Environ()
		for k, v := range ts.config.Environment {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
		err := c.connect(ctx, ts, &sdkmcp.CommandTransport{Command: cmd})
		if err != nil {
			c.log.Debug().Err(err).Str(logging.FieldServer, ts.name).Int("attempt", attempt).Msg("tool server handshake failed")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, connectRetries), ctx))
}

func (c *Catalog) connect(ctx context.Context, ts *toolServer, transport sdkmcp.Transport) error {
	connectCtx, cancel := context.WithTimeout(ctx, ts.timeout)
	defer cancel()

	session, err := c.client.Connect(connectCtx, transport, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	ts.session = session

	if initResult := session.InitializeResult(); initResult != nil && initResult.ServerInfo != nil {
		ts.version = initResult.ServerInfo.Version
	}

	tools, err := fetchTools(connectCtx, ts.name, session)
	if err != nil {
		session.Close()
		ts.session = nil
		return fmt.Errorf("failed to list tools: %w", err)
	}
	ts.tools = tools
	return nil
}

func fetchTools(ctx context.Context, name string, session *sdkmcp.ClientSession) ([]types.ToolInfo, error) {
	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, err
	}

	tools := make([]types.ToolInfo, len(result.Tools))
	for i, t := range result.Tools {
		tools[i] = types.ToolInfo{Server: name, Name: t.Name, Description: t.Description}
	}
	return tools, nil
}

// connected returns the connected servers ordered by name.
func (c *Catalog) connected() []*toolServer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var servers []*toolServer
	for _, s := range c.servers {
		if s.status == StatusConnected {
			servers = append(servers, s)
		}
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].name < servers[j].name })
	return servers
}

// ListTools returns the tools of every connected server, ordered by
// server name. Each server is asked again; when a server fails to answer
// its last known tools are returned.
func (c *Catalog) ListTools(ctx context.Context) ([]types.ToolInfo, error) {
	var all []types.ToolInfo
	for _, s := range c.connected() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		listCtx, cancel := context.WithTimeout(ctx, s.timeout)
		tools, err := fetchTools(listCtx, s.name, s.session)
		cancel()

		c.mu.Lock()
		if err == nil {
			s.tools = tools
		}
		tools = s.tools
		c.mu.Unlock()

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Str(logging.FieldServer, s.name).Msg("failed to refresh tools")
		}
		all = append(all, tools...)
	}
	return all, nil
}

// CallTool invokes a tool on a connected server and returns its text
// output. A tool that reports an error yields a result with IsError set,
// not a Go error.
func (c *Catalog) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (types.ToolResult, error) {
	c.mu.RLock()
	s, ok := c.servers[serverName]
	var session *sdkmcp.ClientSession
	if ok {
		session = s.session
	}
	c.mu.RUnlock()

	if !ok {
		return types.ToolResult{}, fmt.Errorf("%w: %s", ErrServerNotFound, serverName)
	}
	if session == nil {
		return types.ToolResult{}, fmt.Errorf("server not connected: %s", serverName)
	}

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		return types.ToolResult{}, fmt.Errorf("call %s/%s: %w", serverName, toolName, err)
	}

	var output strings.Builder
	for _, content := range result.Content {
		if textContent, ok := content.(*sdkmcp.TextContent); ok {
			output.WriteString(textContent.Text)
		}
	}
	return types.ToolResult{
		Server:  serverName,
		Name:    toolName,
		Text:    output.String(),
		IsError: result.IsError,
	}, nil
}

// Status returns the status of every server ordered by name.
func (c *Catalog) Status() []ServerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := make([]ServerStatus, 0, len(c.servers))
	for name, s := range c.servers {
		st := ServerStatus{
			Name:      name,
			Status:    s.status,
			ToolCount: len(s.tools),
			Version:   s.version,
		}
		if s.err != "" {
			e := s.err
			st.Error = &e
		}
		status = append(status, st)
	}
	sort.Slice(status, func(i, j int) bool { return status[i].Name < status[j].Name })
	return status
}

// Close disconnects all servers.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.servers {
		if s.session != nil {
			s.session.Close()
		}
		if s.stop != nil {
			s.stop()
		}
		s.status = StatusDisconnected
	}
	c.servers = make(map[string]*toolServer)
	return nil
}
