package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	basesniper "github.com/web3guy0/basesniper"
	"github.com/web3guy0/basesniper/configs"
	"github.com/web3guy0/basesniper/internal/db"
	"github.com/web3guy0/basesniper/pkg/output"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := "configs/config.yml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := configs.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("main: load config: %w", err)
	}

	var sender output.Sender
	if cfg.DryRun {
		sender = output.DryRunSender{}
	} else {
		secrets, err := configs.LoadSecrets(".env")
		if err != nil {
			return fmt.Errorf("main: load secrets: %w", err)
		}
		bot, err := tgbotapi.NewBotAPI(secrets.TelegramBotToken)
		if err != nil {
			return fmt.Errorf("main: init telegram bot: %w", err)
		}
		sender = output.NewTelegramSender(bot, secrets.TelegramChatID)
	}

	var audit basesniper.AuditRecorder
	if cfg.SignalAuditDSN != "" {
		recorder, err := db.NewSignalRecorder(cfg.SignalAuditDSN)
		if err != nil {
			return fmt.Errorf("main: open signal audit db: %w", err)
		}
		defer recorder.Close()
		audit = recorder
	} else {
		audit = db.NoopRecorder{}
	}

	sniper, err := basesniper.New(basesniper.Deps{
		WSSEndpoint:           cfg.ChainWSSEndpoint,
		HTTPEndpoint:          cfg.ChainHTTPEndpoint,
		WETHAddress:           cfg.WETHAddress(),
		HooksAllowlist:        cfg.HooksAllowlist(),
		PoolManagerAddress:    cfg.PoolManagerAddress(),
		FactoryAddress:        cfg.FactoryAddress(),
		IgnoreLiquidityBelow:  cfg.IgnoreLiquidityFloor(),
		TokenTTL:              cfg.TokenTTL(),
		InitialNativeUSD:      decimal.NewFromInt(3000), // refreshed by enrichment once live; see DESIGN.md
		Thresholds:            cfg.Thresholds(),
		EnrichmentBaseURL:     cfg.EnrichmentBaseURL,
		EnrichmentChain:       cfg.EnrichmentChain,
		EnrichmentConcurrency: cfg.EnrichmentConcurrency,
		Sender:                sender,
		Audit:                 audit,
	})
	if err != nil {
		return fmt.Errorf("main: construct sniper: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return sniper.Run(ctx)
}
