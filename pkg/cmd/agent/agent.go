package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pitwall-sim/pitwall/log"
	"github.com/pitwall-sim/pitwall/pkg/agent"
	"github.com/pitwall-sim/pitwall/pkg/config"
	"github.com/pitwall-sim/pitwall/pkg/model"
	"github.com/pitwall-sim/pitwall/pkg/utils"
)

//nolint:funlen // by design
func NewAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "streams telemetry for one simulator station",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent()
		},
	}
	cmd.Flags().StringVarP(&config.StationID,
		"station-id",
		"s",
		"",
		"identity of this station (required)")
	//nolint:errcheck // cobra verifies the flag exists
	cmd.MarkFlagRequired("station-id")
	cmd.Flags().StringVar(&config.ReplayFile,
		"replay-file",
		"",
		"JSON-lines telemetry recording used as frame source (synthetic laps if unset)")
	cmd.Flags().StringVar(&config.FrameRate,
		"frame-interval",
		"50ms",
		"minimum interval between two telemetry sends")
	cmd.Flags().StringVar(&config.ReconnectDelay,
		"reconnect-delay",
		"5s",
		"fixed delay before reconnecting after a transport failure")
	cmd.Flags().IntVar(&config.BufferRetention,
		"buffer-retention",
		agent.DefaultRetention,
		"number of completed lap buffers kept")
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"text",
		"controls the log output format")
	return cmd
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

func parseDuration(raw string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultVal
	}
	return d
}

//nolint:funlen // by design
func runAgent() error {
	var logger *log.Logger
	if config.LogFormat == "json" {
		logger = log.New(os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel))
	} else {
		logger = log.DevLogger(os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel))
	}
	log.ResetDefault(logger)

	interval := parseDuration(config.FrameRate, agent.DefaultSendInterval)

	var source agent.FrameSource
	if config.ReplayFile != "" {
		f, err := os.Open(config.ReplayFile)
		if err != nil {
			return fmt.Errorf("open replay file: %w", err)
		}
		defer f.Close()
		source = agent.NewReplaySource(f, interval)
	} else {
		source = agent.NewSynthSource(interval, 90*time.Second)
	}

	// wait for the hub to accept connections before the retry loop starts
	if addr, _ := utils.ExtractFromWebsocketURL(config.HubURL); addr != "" {
		timeout := parseDuration(config.WaitForServices, 60*time.Second)
		if err := utils.WaitForTCP(addr, timeout); err != nil {
			log.Warn("hub not reachable yet, connecting anyway",
				log.ErrorField(err))
		}
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	unit := agent.New(config.StationID, config.HubURL, source,
		agent.WithSendInterval(interval),
		agent.WithReconnectDelay(
			parseDuration(config.ReconnectDelay, agent.DefaultReconnectDelay)),
		agent.WithBufferStore(agent.NewBufferStore(config.BufferRetention)),
		agent.WithLogger(logger.Named("agent")),
		agent.WithLapHandler(func(lapNo int, trace []model.TelemetrySample) {
			log.Info("lap finished",
				log.Int("lap", lapNo), log.Int("samples", len(trace)))
		}),
		agent.WithCommandHandler(model.CommandShutdown, func(*model.CommandMsg) {
			log.Info("shutdown command received")
			stop()
		}),
		agent.WithCommandHandler(model.CommandRestart, func(*model.CommandMsg) {
			log.Info("restart command received")
		}),
		agent.WithCommandHandler(model.CommandPanic, func(*model.CommandMsg) {
			log.Warn("emergency stop command received")
		}),
		agent.WithCommandHandler(model.CommandKioskOn, func(*model.CommandMsg) {
			log.Info("kiosk mode enabled")
		}),
		agent.WithCommandHandler(model.CommandKioskOff, func(*model.CommandMsg) {
			log.Info("kiosk mode disabled")
		}),
		agent.WithCommandHandler(model.CommandJoinLobby, func(cmd *model.CommandMsg) {
			log.Info("join lobby command received", log.Any("args", cmd.Args))
		}),
	)

	log.Info("Starting agent",
		log.String("station", config.StationID),
		log.String("hub", config.HubURL))
	unit.Run(ctx)
	return nil
}
