package main

import (
	"context"
	gohttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/cyclearb/internal/config"
	"github.com/hxuan190/cyclearb/internal/graph"
)

const debugHTTPServiceID = "debug-http"

// debugHTTPService is the engine's operational surface: health probe,
// Prometheus scrape target, and a read-only snapshot of graph size. It
// never touches a wallet or a bundle — the teacher's trading endpoints
// have no analogue here, per spec.md's non-goals.
type debugHTTPService struct {
	container.BaseDIInstance

	live   *liveSubscriptionService
	gconf  *config.GeneralConfig
	server *gohttp.Server
}

func (s *debugHTTPService) ID() string { return debugHTTPServiceID }

func (s *debugHTTPService) Configure(c container.IContainer) error {
	s.gconf = c.GetConfig(config.GENERAL_CONFIG_KEY).(*config.GeneralConfig)
	s.live = c.Instance(liveSubscriptionServiceID).(*liveSubscriptionService)
	return nil
}

func (s *debugHTTPService) Start() error {
	r := gin.Default()
	r.Use(gin.Recovery())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	r.Use(cors.New(corsConf))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(gohttp.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/graph/stats", func(c *gin.Context) {
		c.JSON(gohttp.StatusOK, s.graphStats())
	})

	s.server = &gohttp.Server{
		Addr:    s.gconf.HTTPHost + ":" + s.gconf.HTTPPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", s.server.Addr).Msg("debug-http: listening")
		if err := s.server.ListenAndServe(); err != nil && err != gohttp.ErrServerClosed {
			log.Error().Err(err).Msg("debug-http: server stopped with error")
		}
	}()
	return nil
}

func (s *debugHTTPService) graphStats() graph.Stats {
	if s.live == nil || s.live.g == nil {
		return graph.Stats{}
	}
	return s.live.g.Stats()
}

func (s *debugHTTPService) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("debug-http: failed to stop gracefully")
		return err
	}
	return nil
}
