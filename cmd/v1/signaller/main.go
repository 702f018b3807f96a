package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/shareview/signaller/internal/v1/config"
	"github.com/shareview/signaller/internal/v1/health"
	"github.com/shareview/signaller/internal/v1/ice"
	"github.com/shareview/signaller/internal/v1/logging"
	"github.com/shareview/signaller/internal/v1/middleware"
	"github.com/shareview/signaller/internal/v1/ratelimit"
	"github.com/shareview/signaller/internal/v1/registry"
	"github.com/shareview/signaller/internal/v1/signalling"
	"github.com/shareview/signaller/internal/v1/tracing"
	"github.com/shareview/signaller/internal/v1/transport"
)

func main() {
	app := &cli.App{
		Name:  "signaller",
		Usage: "WebRTC screen sharing signalling server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "listening WebSocket address",
				Value:   config.DefaultAddress,
			},
			&cli.StringFlag{
				Name:  "metrics-address",
				Usage: "listening address for the Prometheus endpoint",
				Value: config.DefaultMetricsAddress,
			},
			&cli.StringFlag{
				Name:  "ip-hash-salt",
				Usage: "base64 salt for the hashed_ip metric label",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file path",
				Value:   config.DefaultConfigPath,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logging.Error(context.Background(), "startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	// .env is for local development only; production sets real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	// Flags beat file and environment.
	if c.IsSet("address") {
		cfg.Address = c.String("address")
	}
	if c.IsSet("metrics-address") {
		cfg.MetricsAddress = c.String("metrics-address")
	}
	if c.IsSet("ip-hash-salt") {
		cfg.IPHashSalt = c.String("ip-hash-salt")
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		return err
	}
	ctx := context.Background()

	if cfg.DevelopmentMode {
		logging.Info(ctx, "running in development mode")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Optional tracing, enabled by the standard OTLP endpoint variable.
	if collectorAddr := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); collectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, "signaller", collectorAddr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
		logging.Info(ctx, "tracing enabled", zap.String("collector", collectorAddr))
	}

	var broker signalling.IceBroker = ice.Disabled{}
	if cfg.TwilioEnabled() {
		broker = ice.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken)
		logging.Info(ctx, "twilio ICE broker enabled")
	} else {
		logging.Warn(ctx, "no twilio credentials, clients receive an empty ice server list")
	}

	limiter, err := ratelimit.New(cfg.RateLimitWsIP)
	if err != nil {
		return err
	}

	reg := registry.New()
	dispatcher := signalling.New(reg, broker)
	hub := transport.NewHub(reg, dispatcher, limiter, cfg.AllowedOrigins, cfg.SaltBytes())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(otelgin.Middleware("signaller"))

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	router.GET("/", hub.ServeWs)

	healthHandler := health.NewHandler(reg)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    cfg.Address,
		Handler: router,
	}

	// Metrics are served on their own listener so the scrape surface never
	// shares a port with client traffic.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddress,
		Handler: metricsMux,
	}

	errCh := make(chan error, 2)
	go func() {
		logging.Info(ctx, "signalling server starting", zap.String("address", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		logging.Info(ctx, "metrics server starting", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logging.Info(ctx, "shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Every viewer gets room_closed before the sockets go away.
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "hub shutdown failed", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "server forced to shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "metrics server forced to shutdown", zap.Error(err))
	}

	logging.Info(ctx, "server exiting")
	return nil
}
