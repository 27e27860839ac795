package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shelfshare/payments/internal/config"
	"github.com/shelfshare/payments/internal/gateway"
	"github.com/shelfshare/payments/internal/logger"
	"github.com/shelfshare/payments/internal/model"
	"github.com/shelfshare/payments/internal/repo"
	"github.com/shelfshare/payments/internal/service"
	httptransport "github.com/shelfshare/payments/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	// borrow_request is owned and migrated by the marketplace service
	if err := gdb.AutoMigrate(&model.Wallet{}, &model.WalletTransaction{}, &model.LendingRecord{}, &model.OutboxEvent{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. kafka writer
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	// 6. repo & services
	repository := repo.NewRepository(gdb, rdb, kw, log)
	ledger := service.NewLedger(repository, log)
	gw := gateway.NewClient(gateway.ClientConfig{
		BaseURL:  cfg.Payment.GatewayBaseURL,
		KeyID:    cfg.Payment.GatewayKeyID,
		Secret:   cfg.Payment.GatewaySecret,
		Currency: cfg.Payment.Currency,
	})
	verifier := gateway.NewVerifier(cfg.Payment.GatewaySecret)
	settleCfg := service.SettlementConfig{
		CommissionRate:    decimal.NewFromFloat(cfg.Payment.CommissionRate),
		PlatformAccountID: cfg.Payment.PlatformAccountID,
		ReceiptPrefix:     cfg.Payment.ReceiptPrefix,
	}
	settlement := service.NewSettlement(repository, ledger, gw, verifier, repository, settleCfg, log)
	withdrawals := service.NewWithdrawals(repository, ledger, log)
	reports := service.NewReports(repository, settleCfg.CommissionRate, log)

	// 7. gin router
	router := httptransport.NewRouter(httptransport.Services{
		Ledger:      ledger,
		Settlement:  settlement,
		Withdrawals: withdrawals,
		Reports:     reports,
	}, cfg.RateLimit, log)

	// 8. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("payments-server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
