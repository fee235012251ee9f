package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pitwall-sim/pitwall/log"
	"github.com/pitwall-sim/pitwall/pkg/config"
	"github.com/pitwall-sim/pitwall/pkg/db/postgres"
	"github.com/pitwall-sim/pitwall/pkg/hub"
	"github.com/pitwall-sim/pitwall/pkg/server/rest"
	"github.com/pitwall-sim/pitwall/pkg/service"
)

//nolint:funlen // by design
func NewHubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hub",
		Short: "starts the telemetry hub server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer()
		},
	}
	cmd.Flags().StringVarP(&config.HubAddr,
		"hub-addr",
		"a",
		"localhost:8080",
		"hub server listen address")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"if set, broadcast frames are relayed to this NATS server")
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.SQLLogLevel,
		"sql-log-level",
		"debug",
		"controls the log level for sql methods")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().StringVar(&config.StaleDuration,
		"stale-duration",
		"1m",
		"agent is removed if no frame was received for this duration")
	return cmd
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

func setupLoggers() (logger, sqlLogger *log.Logger) {
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
		sqlLogger = log.New(
			os.Stderr,
			parseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
		sqlLogger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	return logger, sqlLogger
}

//nolint:funlen,cyclop // by design
func startServer() error {
	logger, sqlLogger := setupLoggers()
	log.ResetDefault(logger)

	if config.ProfilingPort > 0 {
		go func() {
			profilingAddr := fmt.Sprintf("localhost:%d", config.ProfilingPort)
			log.Info("Starting profiling server", log.String("addr", profilingAddr))
			//nolint:gosec // profiling only
			if err := http.ListenAndServe(profilingAddr, nil); err != nil {
				log.Error("profiling server failed", log.ErrorField(err))
			}
		}()
	}

	pool, err := postgres.InitWithURL(
		config.DB,
		postgres.WithTracer(sqlLogger.Named("sql")),
	)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer pool.Close()

	hubOpts := []hub.Option{hub.WithLogger(logger.Named("hub"))}
	var relay *hub.NatsRelay
	if config.NatsURL != "" {
		relay, err = hub.NewNatsRelay(config.NatsURL)
		if err != nil {
			return fmt.Errorf("init nats relay: %w", err)
		}
		defer relay.Close()
		hubOpts = append(hubOpts, hub.WithRelay(relay))
	}
	h := hub.New(hubOpts...)

	staleDuration, err := time.ParseDuration(config.StaleDuration)
	if err != nil {
		log.Warn("Invalid stale-duration. Using 1m", log.ErrorField(err))
		staleDuration = time.Minute
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(staleDuration / 4)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.RemoveStale(staleDuration)
			}
		}
	}()

	svc := service.InitSessionService(pool)
	restServer := rest.NewServer(svc, h)
	wsServer := hub.NewServer(h, hub.WithServerLogger(logger.Named("ws")))

	srv := &http.Server{
		Addr:              config.HubAddr,
		Handler:           restServer.Routes(wsServer),
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Hub server listening", log.String("addr", config.HubAddr))
		if err := srv.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.Error("hub server failed", log.ErrorField(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("forced shutdown", log.ErrorField(err))
	}
	wg.Wait()
	return nil
}
