package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/simobotlist/gateway/internal/catalog"
	"github.com/simobotlist/gateway/internal/catalog/memory"
	sqlitestore "github.com/simobotlist/gateway/internal/catalog/sqlite"
	"github.com/simobotlist/gateway/internal/httpapi"
	runtimepkg "github.com/simobotlist/gateway/internal/runtime"
	configpkg "github.com/simobotlist/gateway/internal/runtime/config"
	"github.com/simobotlist/gateway/internal/runtime/logging"
	"github.com/simobotlist/gateway/transport/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway: WebSocket endpoint, read API, and event bus",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	conf := &configpkg.Config{
		ListenAddr:        viper.GetString("listen"),
		EventsTopic:       viper.GetString("events-topic"),
		CacheTTL:          viper.GetDuration("cache-ttl"),
		OutboundQueueSize: viper.GetInt("outbound-queue"),
		MetricsEnabled:    viper.GetBool("metrics"),
		SQLitePath:        viper.GetString("sqlite"),
		JWTSecret:         viper.GetString("jwt-secret"),
	}
	conf.ApplyDefaults()
	if err := conf.Validate(); err != nil {
		return err
	}

	logger := logging.NewSlogServiceLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var store catalog.Store
	if conf.SQLitePath != "" {
		db, err := sqlitestore.Open(conf.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	} else {
		logger.Info("no sqlite path configured, using the in-memory catalog store", nil)
		store = memory.NewStore()
	}

	// The default registerer is handed over explicitly so promhttp.Handler
	// below serves the gateway collectors.
	service, err := runtimepkg.NewService(conf, logger, runtimepkg.Dependencies{
		Resolver:   catalog.NewResolver(store),
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := service.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("bus loop stopped", err, nil)
		}
	}()

	wsHandler := websocket.NewHTTPHandler(service.HandleSession, websocket.Options{
		QueueSize: conf.OutboundQueueSize,
		Logger:    logger,
		OnDrop:    func(string) { service.Metrics().EnvelopesDropped.Inc() },
	})

	var metricsHandler http.Handler
	if conf.MetricsEnabled {
		metricsHandler = promhttp.Handler()
	}

	api := httpapi.New(httpapi.Options{
		Store:          store,
		CacheTTL:       conf.CacheTTL,
		JWTSecret:      conf.JWTSecret,
		Logger:         logger,
		Metrics:        service.Metrics(),
		Gateway:        service,
		MetricsHandler: metricsHandler,
	})

	gin.SetMode(gin.ReleaseMode)
	router := api.Router()
	router.GET("/gateway", gin.WrapH(wsHandler))

	server := &http.Server{
		Addr:              conf.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening", logging.LogFields{"addr": conf.ListenAddr})
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
