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
	_ "github.com/jackc/pgx/v5/stdlib"

	"homeservices-platform/internal/audit"
	"homeservices-platform/internal/auth"
	"homeservices-platform/internal/calls"
	"homeservices-platform/internal/config"
	"homeservices-platform/internal/notify"
	"homeservices-platform/internal/realtime"
	"homeservices-platform/internal/reporting"
	"homeservices-platform/pkg/logger"
	"homeservices-platform/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	auditSvc := audit.NewService(audit.NewMemoryRepo(), log)
	reportRepo := reporting.NewMemoryRepo()

	// Realtime core. The registry and rooms live inside the service; the
	// websocket transport and the notification dispatcher both reach users
	// through it.
	rt := realtime.NewService(authManager, realtime.NewMemoryMessageStore(), log)
	rt.SetAuditor(auditSvc)
	if cfg.Realtime.MaxConnsPerUser > 0 {
		rt.SetLimiter(realtime.NewRedisConnectionLimiter(rdb, cfg.Realtime.MaxConnsPerUser, log))
	}

	// Notification dispatch: live first, external gateways as fallback.
	gateways := make(map[notify.Channel]notify.Gateway)
	if sms, err := notify.NewTwilioSMSGateway(cfg.Twilio); err != nil {
		log.Warn("sms gateway disabled", "err", err)
	} else {
		gateways[notify.ChannelSMS] = sms
	}
	if email, err := notify.NewSMTPEmailGateway(cfg.SMTP); err != nil {
		log.Warn("email gateway disabled", "err", err)
	} else {
		gateways[notify.ChannelEmail] = email
	}
	if push, err := notify.NewWebhookPushGateway(cfg.Push); err != nil {
		log.Warn("push gateway disabled", "err", err)
	} else {
		gateways[notify.ChannelPush] = push
	}

	dispatcher := notify.NewDispatcher(rt, gateways, notify.NewPostgresContactResolver(db), notify.DispatcherConfig{
		MaxAttempts:    cfg.Realtime.MaxAttempts,
		AttemptTimeout: cfg.Realtime.DispatchTimeout,
	}, log)
	dispatcher.SetRecorder(notify.MultiRecorder(auditSvc, reportRepo))

	pool := notify.NewPool(dispatcher, cfg.Realtime.Workers, cfg.Realtime.QueueSize, log)
	pool.Start(rootCtx)

	scheduler := notify.NewScheduler(notify.NewRedisDelayStore(rdb), pool, cfg.Realtime.SweepInterval, log)
	go scheduler.Run(rootCtx)

	// Call lifecycle, announced over realtime and alerted through notify.
	callSvc := calls.NewService(calls.NewPostgresRepo(db), rt, pool, log)
	callSvc.SetAuditor(auditSvc)
	callSvc.SetReporter(reportRepo)
	rt.SetCallStarter(callSvc)
	rt.SetNotifier(pool)

	reportSvc := reporting.NewService(reportRepo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, registerDeps{
		auth:      authManager,
		realtime:  rt,
		calls:     callSvc,
		reporting: reportSvc,
		notify:    scheduler,
		db:        db,
		redis:     rdb,
		log:       log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Drain in-flight notification work before exiting.
	pool.Wait()
}
