package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"assinatura-bot/internal/bot"
	"assinatura-bot/internal/config"
	"assinatura-bot/internal/database"
	"assinatura-bot/internal/engine"
	"assinatura-bot/internal/gateway"
	"assinatura-bot/internal/logging"
	"assinatura-bot/internal/metrics"
	"assinatura-bot/internal/store"
	"assinatura-bot/internal/worker"
)

func main() {
	cfg := config.LoadConfig()

	log := logging.New(cfg.LogLevel)
	defer log.Sync()

	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		log.Fatal("could not connect to database", zap.Error(err))
	}
	log.Info("connected to PostgreSQL")

	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		log.Fatal("could not connect to redis", zap.Error(err))
	}
	log.Info("connected to Redis")

	gw := gateway.NewClient(cfg.GatewayURL, cfg.GatewayToken, cfg.GuildID, cfg.MemberRoleName, cfg.ReportChannelID)
	st := store.New(db, log)
	eng := engine.New(st, gw, gw, gw, cfg.OwnerID, log)
	checker := worker.NewChecker(eng, rdb, time.Duration(cfg.CheckIntervalHours)*time.Hour, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go metrics.Serve(cfg.MetricsAddr, log)

	checkerDone := make(chan struct{})
	go func() {
		checker.Start(ctx)
		close(checkerDone)
	}()

	if cfg.BotToken != "" {
		adminBot, err := bot.NewBot(cfg.BotToken, eng, checker, cfg.AdminChatIDs, log)
		if err != nil {
			log.Fatal("could not create admin bot", zap.Error(err))
		}
		go adminBot.Start(ctx)
	} else {
		log.Warn("no bot token configured, admin commands disabled")
	}

	log.Info("service started successfully")

	<-ctx.Done()
	log.Info("shutting down, waiting for the current check to wind down")

	select {
	case <-checkerDone:
	case <-time.After(45 * time.Second):
		log.Warn("checker did not stop in time, exiting anyway")
	}
}
