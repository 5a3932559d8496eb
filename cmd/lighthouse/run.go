package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dreamware/lighthouse/internal/config"
	"github.com/dreamware/lighthouse/internal/coordinator"
	"github.com/dreamware/lighthouse/internal/logging"
	"github.com/dreamware/lighthouse/internal/storage"
	"github.com/dreamware/lighthouse/internal/transport"
)

const shutdownTimeout = 5 * time.Second

type runOptions struct {
	configPath string
	listen     string
	logLevel   string
	logFormat  string
}

func newRunCommand() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a lighthouse node",
		Long:  "Run a node with the given configuration until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runNode(ctx, opts, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "lighthouse.yaml", "path to the YAML or JSON configuration")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "listen address (default: the port of self_address on all interfaces)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "json", "log format (json, logfmt)")
	return cmd
}

func runNode(ctx context.Context, opts runOptions, stderr io.Writer) error {
	logger, err := logging.New(stderr, opts.logFormat, opts.logLevel)
	if err != nil {
		return err
	}
	logging.Announce(logger)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		level.Error(logger).Log("op", "loadConfig", "path", opts.configPath, "error", err)
		return err
	}

	listen := opts.listen
	if listen == "" {
		listen = fmt.Sprintf(":%d", cfg.Port())
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listen, err)
	}
	return serve(ctx, cfg, ln, logger)
}

// serve runs a node on ln until ctx is cancelled or the server fails.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener, logger log.Logger) error {
	app := transport.NewAppMount()
	ctrl, err := coordinator.NewController(coordinator.ControllerParams{
		Config:    cfg,
		Logger:    logger,
		Transport: app,
	})
	if err != nil {
		ln.Close()
		return err
	}
	newKVWorkload(cfg.SelfAddress, storage.NewMemoryStore(), ctrl, logger).register(ctrl, app.Unmount)

	router := transport.NewRouter(ctrl, app, logger)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	httpSrv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		level.Info(logger).Log("op", "serve", "addr", ln.Addr().String(), "msg", "lighthouse listening")
		errc <- httpSrv.Serve(ln)
	}()

	// Peers answer a master's reset by calling back, so listen first.
	ctrl.Start(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	ctrl.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	level.Info(logger).Log("op", "serve", "msg", "lighthouse stopped")
	return serveErr
}
