package main

import (
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"boardgo/internal/config"
	"boardgo/internal/discovery"
	"boardgo/internal/gameserver"
	"boardgo/internal/metrics"
	"boardgo/internal/middleware"
	"boardgo/internal/persistence"
	"boardgo/internal/persistence/badgerstore"
	"boardgo/internal/rulespack/cardgame"
	"boardgo/internal/sessionid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	var store persistence.Store = persistence.NewMemory()
	if cfg.PersistPath != "" {
		badgerStore := badgerstore.New(cfg.PersistPath)
		if err := badgerStore.Open(); err != nil {
			logger.WithError(err).Fatal("failed to open persistence store")
		}
		defer badgerStore.Close()
		store = badgerStore
	}

	m := metrics.New()

	gs := gameserver.New(gameserver.Config{
		SessionID:           sessionid.New(),
		DefaultPack:         &cardgame.Pack{},
		Store:               store,
		Logger:              logger,
		Metrics:             m,
		RateRPS:             cfg.RateLimitRPS,
		RateBurst:           cfg.RateLimitBurst,
		IdempotencyCapacity: cfg.IdempotencyCapacity,
	})

	router := gin.New()
	router.Use(gin.Recovery(), ginLogger(logger))
	router.Use(middleware.CORS())
	router.GET("/ws", gs.HandleConnection)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.WithError(err).Fatal("failed to bind listener")
	}

	boundPort := listener.Addr().(*net.TCPAddr).Port
	logger.WithFields(logrus.Fields{
		"port":         boundPort,
		"serviceType":  discovery.ServiceType,
		"instanceName": discovery.DefaultInstanceName,
	}).Info("boardgo listening")

	if err := http.Serve(listener, router); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

// ginLogger bridges gin's request logging into logrus, so request logs
// share a sink and format with every other log line this process emits.
func ginLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.WithFields(logrus.Fields{
			"status": c.Writer.Status(),
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Debug("handled request")
	}
}
