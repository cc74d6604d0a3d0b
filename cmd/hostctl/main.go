package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/softframe/embedctl/internal/capability"
	"github.com/softframe/embedctl/internal/config"
	"github.com/softframe/embedctl/internal/hostmock"
	"github.com/softframe/embedctl/internal/logging"
	"github.com/softframe/embedctl/internal/observability"
	"github.com/softframe/embedctl/internal/transport"
)

var startedAt = time.Now()

func main() {
	configPath := flag.String("config", "", "path to host TOML config")
	demoEvents := flag.Duration("demo-events", 0, "emit a searchQueryChange event at this interval (0 disables)")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.New("hostctl")

	cfg := config.DefaultHost()
	if *configPath != "" {
		loaded, err := config.LoadHost(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("host config load failed")
		}
		cfg = loaded
	}

	matrix, err := capability.MatrixFromAny(cfg.Capabilities)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid capability matrix in config")
	}
	policy := transport.StaticOrigins{Origins: cfg.AllowedOrigins}
	upgrader := transport.Upgrader(policy)

	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startedAt).String(),
			"host":    cfg.Name,
			"version": "0.0.1",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/attach", func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn().Err(err).Str("origin", c.Request.Header.Get("Origin")).Msg("attach rejected")
			return
		}
		conn := transport.NewWSConn(ws, logger)
		host := hostmock.New(conn, matrix, cfg.Context, logger)
		logger.Info().Str("remote", c.Request.RemoteAddr).Msg("frame attached")

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		if *demoEvents > 0 {
			go emitDemoEvents(ctx, host, *demoEvents)
		}
		if err := conn.ReadLoop(ctx, host.Dispatch); err != nil {
			logger.Warn().Err(err).Msg("frame read loop ended")
		}
		logger.Info().Str("remote", c.Request.RemoteAddr).Msg("frame detached")
	})

	logger.Info().Str("addr", cfg.Addr).Msg("hostctl listening")
	if err := r.Run(cfg.Addr); err != nil {
		logger.Fatal().Err(err).Msg("hostctl server failed")
	}
}

func emitDemoEvents(ctx context.Context, host *hostmock.Host, interval time.Duration) {
	terms := []string{"e", "em", "emb", "embe", "embed"}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			term := terms[i%len(terms)]
			_ = host.EmitEvent("searchQueryChange", map[string]string{"searchTerm": term})
		}
	}
}
