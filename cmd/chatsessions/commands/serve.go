package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshbot/chatsessions/internal/config"
	"github.com/joshbot/chatsessions/internal/logging"
	"github.com/joshbot/chatsessions/internal/server"
	"github.com/joshbot/chatsessions/pkg/types"
)

var (
	servePort     int
	serveHostname string
	serveWatch    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the chat session host and expose its HTTP API.

The listen address comes from the config file and CHATSESSIONS_PORT;
--port and --hostname override both.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "", "Hostname to listen on")
	serveCmd.Flags().BoolVar(&serveWatch, "watch-config", true, "Apply logLevel changes from config files without a restart")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.config.Server == nil {
		a.config.Server = &types.ServerConfig{}
	}
	if servePort != 0 {
		a.config.Server.Port = servePort
	}
	if serveHostname != "" {
		a.config.Server.Hostname = serveHostname
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Addr = config.ListenAddr(a.config)
	serverConfig.EnableCORS = config.CORSEnabled(a.config)

	logging.Info().
		Str("version", Version).
		Str("directory", a.dir).
		Int("sessions", len(a.manager.ListSessionItems())).
		Msg("starting chatsessions server")

	srv := server.New(serverConfig, a.manager, a.bus, a.tools)

	if serveWatch && logLevel == "" {
		watcher, err := config.NewWatcher(a.dir, config.DefaultDebounce, func(cfg *types.Config) {
			logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
		})
		if err != nil {
			logging.Warn().Err(err).Msg("config watching disabled")
		} else {
			go watcher.Run(ctx)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
	return nil
}
