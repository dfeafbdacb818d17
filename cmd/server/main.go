// Package main runs the call-signaling server with WebSocket transport and
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	webrtc "github.com/pion/webrtc/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/visiocall/backend/config"
	"github.com/visiocall/backend/internal/calls"
	"github.com/visiocall/backend/internal/middleware"
	"github.com/visiocall/backend/internal/ops"
	"github.com/visiocall/backend/internal/realtime"
	redisclient "github.com/visiocall/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// Redis is optional: without it the server runs single-instance and all
	// call events stay local.
	var (
		pub realtime.Publisher
		sub realtime.Subscriber
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.NewClient(ctx, redisclient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, running single-instance", zap.Error(err))
		} else {
			defer rdb.Close()
			bridge := realtime.NewRedisPubSub(rdb.Client, logger)
			pub, sub = bridge, bridge
		}
	}

	hub := realtime.NewHub(logger, pub, sub)
	store := calls.NewStore(nil)
	service := calls.NewService(store, hub, calls.Options{
		Admission:    calls.AdmissionPolicy(cfg.Calls.AdmissionPolicy),
		CreatorLeave: calls.CreatorLeavePolicy(cfg.Calls.CreatorLeave),
	}, logger)

	janitor := calls.NewJanitor(store, service,
		time.Duration(cfg.Calls.JanitorIntervalSec)*time.Second,
		time.Duration(cfg.Calls.StaleAfterSec)*time.Second,
		logger)
	janitorCtx, janitorCancel := context.WithCancel(ctx)
	defer janitorCancel()
	go janitor.Run(janitorCtx)

	iceServers := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.ICEUrls))
	for _, u := range cfg.WebRTC.ICEUrls {
		if u != "" {
			iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{u}})
		}
	}

	opsHandler := ops.NewHandler(store)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(newCORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", opsHandler.Health)
	router.GET("/calls/:code", opsHandler.GetCall)
	if cfg.Debug.Endpoints {
		router.GET("/debug/calls", opsHandler.ListCalls)
		logger.Warn("debug endpoints enabled; do not expose publicly")
	}

	router.GET("/ws", realtime.ServeWs(hub, service, logger, iceServers))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("admission_policy", cfg.Calls.AdmissionPolicy),
			zap.String("creator_leaves", cfg.Calls.CreatorLeave),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	janitorCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newCORS(allowedOrigins string) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       24 * time.Hour,
	}
	if allowedOrigins == "" || allowedOrigins == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		for _, o := range splitOrigins(allowedOrigins) {
			corsCfg.AllowOrigins = append(corsCfg.AllowOrigins, o)
		}
	}
	return cors.New(corsCfg)
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if t := strings.TrimSpace(o); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
