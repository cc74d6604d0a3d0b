package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/softframe/embedctl/internal/client"
	"github.com/softframe/embedctl/internal/config"
	"github.com/softframe/embedctl/internal/logging"
	"github.com/softframe/embedctl/internal/search"
	"github.com/softframe/embedctl/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to app TOML config")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.New("embedctl")

	cfg := config.DefaultApp()
	if *configPath != "" {
		loaded, err := config.LoadApp(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("app config load failed")
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := transport.DialWS(ctx, cfg.HostURL, cfg.Origin, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("host_url", cfg.HostURL).Msg("host dial failed")
	}

	cli, err := client.New(cfg, conn, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("client construction failed")
	}
	defer func() {
		_ = cli.Close()
	}()

	readDone := make(chan error, 1)
	go func() {
		readDone <- conn.ReadLoop(ctx, cli.DispatchIncoming)
	}()

	if err := cli.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("handshake failed")
	}
	logger.Info().
		Bool("search_supported", cli.Supports(search.Area)).
		Int("host_context_keys", len(cli.HostContext())).
		Msg("frame ready")

	search.RegisterHandlers(cli, search.Handlers{
		OnChange: func(q search.Query) {
			logger.Info().Str("search_term", q.SearchTerm).Msg("search query changed")
		},
		OnClosed: func(search.Query) {
			logger.Info().Msg("search closed")
		},
		OnExecute: func(q search.Query) {
			logger.Info().Str("search_term", q.SearchTerm).Msg("search executed")
		},
	})

	if err := cli.NotifyAppLoaded(ctx); err != nil {
		logger.Warn().Err(err).Msg("notifyAppLoaded failed")
	}
	if err := cli.NotifySuccess(ctx); err != nil {
		logger.Warn().Err(err).Msg("notifySuccess failed")
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-readDone:
		if err != nil {
			logger.Error().Err(err).Msg("host connection lost")
		} else {
			logger.Info().Msg("host connection closed")
		}
	}
}
