package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/gin-gonic/gin"
	"github.com/soheilhy/cmux"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/example/cancer-check/internal/auth"
	"github.com/example/cancer-check/internal/classifier"
	"github.com/example/cancer-check/internal/config"
	"github.com/example/cancer-check/internal/grpcserver"
	"github.com/example/cancer-check/internal/handlers"
	"github.com/example/cancer-check/internal/logging"
	"github.com/example/cancer-check/internal/usecase"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run wires the service and blocks until shutdown.
func run(args []string) error {
	fs := flag.NewFlagSet("cancer-check", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogOptions())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	svc, err := classifier.New(cfg.ClassifierSettings(), cfg.Classifier.AssetsDir, logger)
	if err != nil {
		logger.Warn("classifier not ready, retrying on first request", zap.Error(err))
	}
	defer svc.Close()

	stats := initStatsd(cfg.Metrics, logger)
	defer stats.Close()

	uc := usecase.NewAnalysisUseCase(svc, cfg.Policy(), stats, logger)

	var (
		verifier       *auth.Verifier
		authMiddleware gin.HandlerFunc
	)
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience)
		authMiddleware = verifier.Middleware()
	} else {
		logger.Warn("JWT_SECRET not set, analysis endpoints are unauthenticated")
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize
	handlers.RegisterRoutes(r, uc, authMiddleware)

	grpcServer := grpcserver.New(uc, verifier, logger)

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		logger.Error("failed to listen", zap.String("addr", cfg.Server.Addr), zap.Error(err))
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	server := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("cancer-check listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("model", cfg.Classifier.ModelName),
		zap.Stringer("classifier_state", svc.State()))
	shutdownTimeout := time.Duration(cfg.Server.ShutdownSeconds) * time.Second
	if err := serveMux(listener, server, grpcServer, shutdownTimeout, logger, nil); err != nil {
		logger.Error("server failed", zap.Error(err))
		return err
	}
	return nil
}

func initStatsd(cfg config.MetricsConfig, logger *zap.Logger) statsd.ClientInterface {
	if cfg.StatsdAddr == "" {
		return &statsd.NoOpClient{}
	}
	client, err := statsd.New(cfg.StatsdAddr, statsd.WithNamespace(cfg.Namespace), statsd.WithTags([]string{"service:cancer-check"}))
	if err != nil {
		logger.Warn("statsd disabled", zap.String("addr", cfg.StatsdAddr), zap.Error(err))
		return &statsd.NoOpClient{}
	}
	return client
}

// serveMux serves gRPC and HTTP on one listener until a shutdown signal
// arrives, then drains both.
func serveMux(listener net.Listener, server *http.Server, grpcServer *grpc.Server, shutdownTimeout time.Duration, logger *zap.Logger, signalCh <-chan os.Signal) error {
	m := cmux.New(listener)
	grpcListener := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpListener := m.Match(cmux.Any())

	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, cmux.ErrListenerClosed) {
			logger.Error("grpc server stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Debug("connection multiplexer stopped", zap.Error(err))
		}
	}()

	err := serveHTTPServerWithOptions(server, shutdownTimeout, logger, httpListener, signalCh)
	grpcServer.GracefulStop()
	listener.Close()
	return err
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
