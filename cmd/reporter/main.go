/*
Package main runs the reporter service.

It answers report submissions from the rendezvous servers over NATS: each
report is validated, triaged, stored in PostgreSQL (screenshots in S3 when a
bucket is configured) and counted against the reported identity, which is
banned in Redis once enough reports arrive.

Run with -migrate to apply database migrations and exit.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/rendezvous/internal/ban"
	"github.com/whisper/rendezvous/internal/config"
	"github.com/whisper/rendezvous/internal/logx"
	"github.com/whisper/rendezvous/internal/messaging"
	"github.com/whisper/rendezvous/internal/moderation"
	"github.com/whisper/rendezvous/internal/report"
	"github.com/whisper/rendezvous/internal/storage"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

	cfg, err := config.LoadReporter()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	log := logx.Component("reporter")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL.
	openCtx, cancelOpen := context.WithTimeout(ctx, 5*time.Second)
	db, err := report.Open(openCtx, cfg.DatabaseURL)
	cancelOpen()
	if err != nil {
		logx.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	if *migrateOnly {
		if err := report.Migrate(db); err != nil {
			logx.Fatal(err, "migration failed")
		}
		logx.Info("migrations applied")
		return
	}

	// --- Screenshots: S3 when configured, inline otherwise.
	var shots report.ScreenshotStore
	if cfg.S3BucketName != "" {
		s3, err := storage.NewS3(ctx, storage.Config{
			Bucket:          cfg.S3BucketName,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "failed to initialize screenshot storage")
		}
		shots = s3
	} else {
		logx.Warn("S3_BUCKET_NAME not set, screenshots are stored inline")
	}

	// --- Redis: report counters and bans.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancelPing()
	if err != nil {
		logx.Fatal(err, "failed to connect to Redis")
	}

	filter := moderation.NewFilter(cfg.FlagTerms...)
	svc := report.NewService(
		report.NewPostgresStore(db),
		shots,
		ban.NewStore(rdb),
		report.WithTriage(filter),
	)

	// --- NATS: one queue group so each report is filed once.
	natsCfg := messaging.DefaultConfig()
	natsCfg.URL = cfg.NATSURL
	natsCfg.Name = "rendezvous-reporter"
	nc, err := messaging.Connect(natsCfg)
	if err != nil {
		logx.Fatal(err, "failed to connect to NATS")
	}

	if err := nc.QueueSubscribe(messaging.SubjectReportSubmit, messaging.QueueReporters, svc.Serve); err != nil {
		logx.Fatal(err, "failed to subscribe to report submissions")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("nats_url", cfg.NATSURL).
		Str("redis_addr", cfg.RedisAddr).
		Bool("s3", shots != nil).
		Int("flag_terms", filter.Terms()).
		Msg("reporter service running")

	<-ctx.Done()
	logx.Info("received shutdown signal, shutting down")

	// Close drains subscriptions, letting in-flight reports finish.
	nc.Close()
	if err := rdb.Close(); err != nil {
		logx.Error(err, "redis close")
	}
	logx.Info("reporter stopped")
}
