package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Laky-64/gologging"
	"github.com/emiago/diago"
	"github.com/emiago/sipgo"

	"voicebridge/internal/sipsession"
)

func main() {
	// Reduce verbose sipgo/diago internal logging.
	gologging.SetLevel(gologging.WarnLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := sipsession.LoadConfig(configPath)
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ua, err := sipgo.NewUA()
	if err != nil {
		logger.Error("sip ua init failed", "error", err)
		os.Exit(1)
	}

	udpTransport := diago.Transport{
		Transport:    "udp",
		BindHost:     "0.0.0.0",
		BindPort:     cfg.SIPBindPort,
		ExternalHost: cfg.SIPExternalIP,
	}
	tcpTransport := diago.Transport{
		Transport:    "tcp",
		BindHost:     "0.0.0.0",
		BindPort:     cfg.SIPBindPort,
		ExternalHost: cfg.SIPExternalIP,
	}

	sipUA := diago.NewDiago(ua,
		diago.WithTransport(udpTransport),
		diago.WithTransport(tcpTransport),
		diago.WithLogger(logger),
		diago.WithMediaConfig(diago.MediaConfig{
			Codecs: sipsession.PreferredCodecs(cfg.FrameDuration),
		}),
	)

	service := sipsession.NewService(cfg, sipUA, logger)

	logger.Info("voicebridge starting", "bind_port", cfg.SIPBindPort, "ai_endpoint", cfg.AIEndpointURL)
	err = service.Start(ctx)

	logger.Info("shutting down...")
	if err != nil && ctx.Err() == nil {
		logger.Error("bridge stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
