package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"geoattend/internal/attendance"
	"geoattend/internal/config"
	"geoattend/internal/logger"
	"geoattend/internal/queue"
	"geoattend/internal/security"
	"geoattend/internal/session"
	"geoattend/internal/store"
)

// The worker handles the fire-and-forget tail of a successful marking:
// it appends the network origin to the student's history and logs an
// advisory flag when the origin looks unusual. Failures here never
// affect the already-persisted attendance.
func main() {
	cfg := config.Load()
	zlog := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = zlog.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		zlog.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var work queue.Queue
	if cfg.QueueBackend == "memory" {
		work = queue.NewInMemory(64)
	} else {
		work = queue.NewRedisQueue(redisClient.Client, "")
	}

	sessions := session.NewRegistry(session.NewRepository(db.Client), cfg.DefaultRadiusMeters, zlog)
	ledger := attendance.NewLedger(attendance.NewRepository(db.Client), sessions, nil, cfg.VPNBlock, zlog)
	monitor := security.NewMonitor(redisClient.Client, nil, zlog)

	messages, err := work.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	zlog.Info("worker started, waiting for messages")
	for msg := range messages {
		if msg.Kind != queue.KindAttendanceRecorded {
			continue
		}

		rec, err := ledger.GetRecord(ctx, msg.Body)
		if err != nil {
			zlog.Warn("record fetch failed", zap.String("record_id", msg.Body), zap.Error(err))
			continue
		}

		// Suspicion is evaluated against the history as it stood
		// before this origin is appended, so a fresh address cannot
		// vouch for itself.
		if monitor.IsSuspicious(ctx, rec.StudentID, rec.OriginIP) {
			zlog.Warn("unusual network origin",
				zap.String("student_id", rec.StudentID),
				zap.String("session_id", rec.SessionID),
				zap.String("origin", rec.OriginIP))
		}
		if err := monitor.RecordOrigin(ctx, rec.StudentID, rec.OriginIP); err != nil {
			zlog.Warn("origin history update failed",
				zap.String("student_id", rec.StudentID), zap.Error(err))
		}
	}

	zlog.Info("worker stopped")
}
