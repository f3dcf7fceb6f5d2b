package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/ttwo_investment_bot/config"
	"github.com/KotFed0t/ttwo_investment_bot/data"
	"github.com/KotFed0t/ttwo_investment_bot/data/ledger"
	"github.com/KotFed0t/ttwo_investment_bot/data/repository"
	"github.com/KotFed0t/ttwo_investment_bot/data/session"
	"github.com/KotFed0t/ttwo_investment_bot/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/ttwo_investment_bot/internal/externalApi/yahooApi"
	"github.com/KotFed0t/ttwo_investment_bot/internal/notifier"
	"github.com/KotFed0t/ttwo_investment_bot/internal/scheduler"
	"github.com/KotFed0t/ttwo_investment_bot/internal/service/investmentService"
	"github.com/KotFed0t/ttwo_investment_bot/internal/tgbot"
	"github.com/KotFed0t/ttwo_investment_bot/internal/transport/telegram"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.String("logLevel", cfg.LogLevel), slog.String("ledger", cfg.Ledger.Path), slog.Bool("googleDrive", cfg.GoogleDrive.Enabled))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient, err := data.NewPostgresClient(ctx, cfg)
	if err != nil {
		fatal("postgres init failed", err)
	}
	defer pgClient.Close()

	pgRepo := repository.NewPostgres(pgClient)

	redisClient, err := data.NewRedisClient(ctx, cfg)
	if err != nil {
		fatal("redis init failed", err)
	}
	defer redisClient.Close()

	redisSession := session.NewRedisSession(redisClient, cfg.SessionExpiration)

	yahooApiClient := yahooApi.New(cfg)

	xlsxLedger := ledger.New(cfg.Ledger.Path)

	var notifiers []investmentService.Notifier
	if cfg.Ledger.OpenAfterWrite {
		notifiers = append(notifiers, notifier.NewFileOpener())
	}

	sched, err := scheduler.New()
	if err != nil {
		fatal("scheduler init failed", err)
	}

	if cfg.GoogleDrive.Enabled {
		googleCloudStorage, err := googleDriveApi.New(ctx, cfg)
		if err != nil {
			fatal("google drive init failed", err)
		}
		notifiers = append(notifiers, notifier.NewDriveBackup(googleCloudStorage))

		err = sched.NewIntervalJob("delete old ledger backups", googleCloudStorage.DeleteOldFiles, cfg.Jobs.DeleteOldBackupsInterval, true)
		if err != nil {
			fatal("scheduler job init failed", err)
		}
	}

	investmentSrv := investmentService.New(pgRepo, xlsxLedger, yahooApiClient, investmentService.WithNotifiers(notifiers...))
	if err = investmentSrv.Init(ctx); err != nil {
		fatal("ledger init failed", err)
	}

	sched.Start()
	defer sched.Stop()

	tgController := telegram.NewController(investmentSrv, redisSession)

	tgBot, err := tgbot.New(cfg, tgController, redisSession)
	if err != nil {
		fatal("tgbot init failed", err)
	}
	tgBot.Start()
	defer tgBot.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.String("err", err.Error()))
	os.Exit(1)
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
