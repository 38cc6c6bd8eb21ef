package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/1314wu/server-p2p-signal/global/config"
	"github.com/1314wu/server-p2p-signal/logger"
	mid "github.com/1314wu/server-p2p-signal/middleware"
	midsec "github.com/1314wu/server-p2p-signal/middleware/security"
	"github.com/1314wu/server-p2p-signal/service/events"
	"github.com/1314wu/server-p2p-signal/service/presence"
	sig "github.com/1314wu/server-p2p-signal/service/signal"
	"github.com/1314wu/server-p2p-signal/service/signal/handlers"
)

func main() {
	config.Load()
	cfg := config.Global

	// Optional presence mirror.
	var pres *presence.Manager
	if cfg.RedisAddr != "" {
		var err error
		pres, err = presence.New(presence.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			NodeID:   cfg.NodeID,
			TTL:      cfg.PresenceTTL,
		})
		if err != nil {
			logger.Errorf("[main] presence init: %v", err)
			os.Exit(1)
		}
		defer func() { _ = pres.Close() }()
	}

	// Optional event bus; when present it also serves as the disconnect
	// observer.
	var pub *events.Publisher
	var observer sig.DisconnectObserver
	if cfg.NatsServers != "" {
		var err error
		pub, err = events.New(events.Config{
			Servers: strings.Split(cfg.NatsServers, ","),
			Name:    cfg.NodeID,
		})
		if err != nil {
			logger.Errorf("[main] events init: %v", err)
			os.Exit(1)
		}
		defer func() { _ = pub.Close() }()
		observer = &events.DisconnectNotifier{
			P:       pub,
			Subject: cfg.NatsDisconnectSubj,
			Node:    cfg.NodeID,
		}
	}

	srv, err := sig.NewServer(sig.Options{
		NodeID:      cfg.NodeID,
		DefaultRoom: cfg.DefaultRoom,
		Auth:        sig.NewJWTAuthenticator(cfg.JwtSecret),
		Observer:    observer,
		Presence:    pres,
		Events:      pub,
		RoomSubject: cfg.NatsRoomSubj,
		Manager: sig.ManagerConf{
			UnauthTTL:  cfg.UnauthTTL,
			SweepEvery: cfg.SweepEvery,
		},
	})
	if err != nil {
		logger.Errorf("[main] server init: %v", err)
		os.Exit(1)
	}
	handlers.RegisterAll(srv)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", srv.HandleWS(sig.WSConfig{
		ReadLimit:    cfg.ReadLimit,
		PingInterval: cfg.PingInterval,
		PongWait:     cfg.PongWait,
		WriteWait:    cfg.WriteWait,
		SendQueue:    cfg.SendQueue,
		CheckOrigin:  mid.CheckOrigin(cfg.AllowedOrigins),
	}))
	mid.GET(r, "/healthz", srv.HandleHealthz, mid.RouteOpt{})

	adminOpts := &midsec.Options{Token: cfg.AdminToken}
	mid.POST(r, "/admin/send", srv.HandleAdminSend, mid.RouteOpt{IsAuth: true, Auth: adminOpts})
	mid.POST(r, "/admin/disconnect", srv.HandleAdminDisconnect, mid.RouteOpt{IsAuth: true, Auth: adminOpts})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Infof("[main] shutting down, refusing new connections")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Live sessions are deliberately left connected.
		if err := srv.Stop(ctx); err != nil {
			logger.Warnf("[main] stop: %v", err)
		}
	}()

	if err := srv.Start(cfg.ListenAddr, r); err != nil {
		logger.Errorf("[main] serve: %v", err)
		os.Exit(1)
	}
}
