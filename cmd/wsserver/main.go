/*
Package main runs the rendezvous server.

It loads configuration, initializes logging, connects to Redis (rate limits,
bans) and NATS (abuse reports), builds the session engine and serves the
WebSocket endpoint until SIGINT or SIGTERM, then drains in-flight reports.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/whisper/rendezvous/internal/ban"
	"github.com/whisper/rendezvous/internal/config"
	"github.com/whisper/rendezvous/internal/gateway"
	"github.com/whisper/rendezvous/internal/identity"
	"github.com/whisper/rendezvous/internal/logx"
	"github.com/whisper/rendezvous/internal/messaging"
	"github.com/whisper/rendezvous/internal/ratelimit"
	"github.com/whisper/rendezvous/internal/report"
	"github.com/whisper/rendezvous/internal/session"
	"github.com/whisper/rendezvous/internal/storage"
	"github.com/whisper/rendezvous/internal/ws"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("worker_pool", cfg.WorkerPoolSize).
		Int("max_connections", cfg.MaxConnections).
		Str("redis_addr", cfg.RedisAddr).
		Str("nats_url", cfg.NATSURL).
		Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Redis: rate limits and bans. Both fail open, so an unreachable
	// Redis at startup is logged, not fatal.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancelPing := context.WithTimeout(ctx, 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logx.Warn("redis unreachable, rate limits and bans are disabled until it is back", "addr", cfg.RedisAddr, "error", err.Error())
	}
	cancelPing()

	limiter := ratelimit.NewLimiter(rdb)
	bans := ban.NewStore(rdb)

	// --- NATS: report collaborator.
	natsCfg := messaging.DefaultConfig()
	natsCfg.URL = cfg.NATSURL
	natsCfg.Name = "rendezvous-wsserver"
	nc, err := messaging.Connect(natsCfg)
	if err != nil {
		logx.Fatal(err, "failed to connect to NATS")
	}

	// --- Report client. Screenshots go to S3 first when a bucket is set, so
	// they never have to fit in a NATS message.
	var clientOpts []report.ClientOption
	if cfg.S3BucketName != "" {
		shots, err := storage.NewS3(ctx, storage.Config{
			Bucket:          cfg.S3BucketName,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "failed to initialize screenshot storage")
		}
		clientOpts = append(clientOpts, report.WithScreenshots(shots))
	}
	logx.Info("report client ready", "max_payload", nc.MaxPayload(), "s3", cfg.S3BucketName != "")

	// --- Transport, engine and gateway.
	wsCfg := ws.DefaultServerConfig()
	wsCfg.ListenAddr = cfg.Addr()
	wsCfg.WorkerPoolSize = cfg.WorkerPoolSize
	wsCfg.MaxConnections = cfg.MaxConnections
	wsCfg.ReadTimeout = cfg.ReadTimeout
	wsCfg.WriteTimeout = cfg.WriteTimeout
	wsCfg.CheckOrigin = cfg.OriginAllowed
	wsCfg.ConnectLimiter = ratelimit.NewIPLimiter(rate.Limit(cfg.ConnectRate), cfg.ConnectBurst)
	wsCfg.CORSOrigins = cfg.AllowedOrigins
	if cfg.IsDevelopment() {
		wsCfg.CORSOrigins = []string{"*"}
	}

	dispatcher := ws.NewMessageDispatcher()
	server := ws.NewServer(wsCfg, dispatcher.Dispatch)

	engine := session.NewEngine(server,
		session.WithReporter(report.NewClient(nc, clientOpts...)),
		session.WithReportTimeout(cfg.ReportTimeout),
	)

	gw := gateway.New(engine, server,
		gateway.WithRateLimiter(limiter),
		gateway.WithBans(bans),
		gateway.WithIdentity(identity.NewExtractor(cfg.IdentityField)),
	)
	gw.Bind(dispatcher)

	server.SetOnConnect(engine.Connect)
	server.SetOnDisconnect(func(connID string) {
		engine.Disconnect(connID)

		resetCtx, cancel := context.WithTimeout(context.Background(), gateway.CheckTimeout)
		defer cancel()
		limiter.Reset(resetCtx, connID)
	})
	server.SetStats(func() any { return engine.Stats() })

	go wsCfg.ConnectLimiter.Run(ctx, time.Minute)

	go func() {
		if err := server.Start(); err != nil {
			logx.Fatal(err, "server failed")
		}
	}()

	<-ctx.Done()
	logx.Info("received shutdown signal, starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "server shutdown")
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "reports still in flight at shutdown")
	}
	nc.Close()
	if err := rdb.Close(); err != nil {
		logx.Error(err, "redis close")
	}

	logx.Info("server stopped")
}
