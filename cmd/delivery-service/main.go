// cmd/delivery-service/main.go
package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"nexus-delivery/internal/pkg/bootstrap"
	"nexus-delivery/internal/pkg/httpclient"
	"nexus-delivery/internal/pkg/keylock"
	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/pkg/mq"
	"nexus-delivery/internal/pkg/notify"
	"nexus-delivery/internal/pkg/txn"
	dispatchapp "nexus-delivery/internal/service/dispatch/application"
	dispatchinfra "nexus-delivery/internal/service/dispatch/infrastructure"
	dispatchapi "nexus-delivery/internal/service/dispatch/interfaces"
	orderapp "nexus-delivery/internal/service/order/application"
	orderinfra "nexus-delivery/internal/service/order/infrastructure"
	orderadapter "nexus-delivery/internal/service/order/infrastructure/adapter"
	orderapi "nexus-delivery/internal/service/order/interfaces"
	paymentapp "nexus-delivery/internal/service/payment/application"
	paymentinfra "nexus-delivery/internal/service/payment/infrastructure"
	paymentapi "nexus-delivery/internal/service/payment/interfaces"
	promoapp "nexus-delivery/internal/service/promotion/application"
	promodomain "nexus-delivery/internal/service/promotion/domain"
	promoinfra "nexus-delivery/internal/service/promotion/infrastructure"
	"nexus-delivery/internal/service/promotion/infrastructure/rule"
	promoapi "nexus-delivery/internal/service/promotion/interfaces"
	walletapp "nexus-delivery/internal/service/wallet/application"
	"nexus-delivery/internal/service/wallet/domain/port"
	walletinfra "nexus-delivery/internal/service/wallet/infrastructure"
	walletapi "nexus-delivery/internal/service/wallet/interfaces"
	"nexus-delivery/internal/zookeeper"
)

const serviceName = "delivery-service"

// main 是组装根：创建基础设施、绑定各个上下文，然后交给 bootstrap 启动。
func main() {
	cfg, nacosClient := bootstrap.Init()
	tracer := otel.Tracer(serviceName)

	var (
		background []func(ctx context.Context) error
		cleanup    []func(ctx context.Context) error
	)

	// 1. 基础设施
	db, err := gorm.Open(mysql.Open(cfg.Infra.MySQL.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to connect mysql")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to get sql.DB")
	}
	sqlDB.SetMaxOpenConns(cfg.Infra.MySQL.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Infra.MySQL.MaxIdleConns)
	cleanup = append(cleanup, func(context.Context) error { return sqlDB.Close() })
	txm := txn.NewGormManager(db)

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Infra.Redis.Addr},
		Password: cfg.Infra.Redis.Password,
		DB:       cfg.Infra.Redis.DB,
	})
	cleanup = append(cleanup, func(context.Context) error { return rdb.Close() })

	kafkaWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.NotificationTopic)
	cleanup = append(cleanup, func(context.Context) error { return kafkaWriter.Close() })
	dispatcher := notify.NewDispatcher(notify.NewKafkaSender(kafkaWriter), cfg.Notify.QueueSize, cfg.Notify.Workers)
	background = append(background, dispatcher.Run)

	var locker port.WalletLocker = keylock.New()
	if len(cfg.Infra.Zookeeper.Servers) > 0 {
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("failed to connect zookeeper")
		}
		cleanup = append(cleanup, func(context.Context) error { conn.Close(); return nil })
		locker = zookeeper.NewLocker(conn, cfg.Infra.Zookeeper.LockTimeout)
		logger.L().Info().Strs("servers", cfg.Infra.Zookeeper.Servers).Msg("🔒 wallet locks backed by zookeeper")
	}

	gateway := paymentinfra.NewPayOSHTTPAdapter(paymentinfra.PayOSConfig{
		BaseURL:     cfg.Payment.BaseURL,
		ClientID:    cfg.Payment.ClientID,
		APIKey:      cfg.Payment.APIKey,
		ChecksumKey: cfg.Payment.ChecksumKey,
		ReturnURL:   cfg.Payment.ReturnURL,
		CancelURL:   cfg.Payment.CancelURL,
		Timeout:     cfg.Payment.Timeout,
	}, httpclient.NewClient(tracer), tracer)

	celEngine, err := rule.NewCELRuleEngine()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to initialize voucher rule engine")
	}

	// 2. 仓储
	orderRepo := orderinfra.NewGormOrderRepository(db)
	walletRepo := walletinfra.NewGormWalletRepository(db)
	voucherRepo := promoinfra.NewGormVoucherRepository(db)
	directory := orderadapter.NewDirectoryGormAdapter(db)
	if cfg.Infra.MySQL.AutoMigrate {
		for _, migrate := range []func() error{orderRepo.AutoMigrate, walletRepo.AutoMigrate, voucherRepo.AutoMigrate, directory.AutoMigrate} {
			if err := migrate(); err != nil {
				logger.L().Fatal().Err(err).Msg("auto migrate failed")
			}
		}
	}

	// 3. 应用服务
	ledger := walletapp.NewLedgerService(walletRepo, txm, locker, gateway, walletinfra.NewNotificationAdapter(dispatcher), tracer,
		walletapp.LedgerConfig{Currency: cfg.App.Currency, IntentTTL: cfg.Payment.IntentTTL})
	promotions := promoapp.NewPromotionService(voucherRepo, promodomain.NewEvaluator(celEngine), tracer)
	fleet := dispatchapp.NewDispatchService(dispatchinfra.NewRedisFleetStore(rdb), tracer, cfg.Fleet.StaleAfter)

	shippingFee, err := decimal.NewFromString(cfg.Order.ShippingFee)
	if err != nil {
		logger.L().Fatal().Err(err).Str("shipping_fee", cfg.Order.ShippingFee).Msg("invalid shipping fee")
	}
	orders := orderapp.NewOrderApplicationService(
		orderRepo, txm,
		orderadapter.NewCartRedisAdapter(rdb),
		directory, directory,
		orderadapter.NewFlatShippingAdapter(shippingFee),
		orderadapter.NewPromotionAdapter(promotions),
		orderadapter.NewWalletLedgerAdapter(ledger),
		gateway, fleet,
		orderadapter.NewNotificationAdapter(dispatcher),
		tracer,
		orderapp.Config{
			ProcessingTimeout:   cfg.Order.ProcessingTimeout,
			IntentTTL:           cfg.Payment.IntentTTL,
			VerifyGrace:         cfg.Payment.VerifyGrace,
			DefaultNearbyRadius: cfg.Order.DefaultNearbyRadius,
		},
	)

	reconciler := paymentapp.NewReconciler(map[string]paymentapp.PendingSource{
		"orders":   paymentapp.SourceFunc{PendingFn: orders.PendingBankingCodes, ConfirmFn: orders.ConfirmBankingPayment},
		"deposits": paymentapp.SourceFunc{PendingFn: ledger.PendingDepositCodes, ConfirmFn: ledger.ConfirmTopUp},
	}, tracer, paymentapp.ReconcilerConfig{
		Interval: cfg.Payment.PollInterval,
		MinAge:   cfg.Payment.PollMinAge,
		Batch:    cfg.Payment.PollBatch,
	})
	background = append(background, reconciler.Run)

	// 4. 启动
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("GET /metrics", promhttp.Handler())

			orderapi.NewOrderHandler(orders).RegisterRoutes(appCtx.Mux)
			walletapi.NewWalletHandler(ledger).RegisterRoutes(appCtx.Mux)
			promoapi.NewPromotionHandler(promotions).RegisterRoutes(appCtx.Mux)
			paymentapi.NewWebhookHandler(gateway, ledger, orders).RegisterRoutes(appCtx.Mux)
			dispatchapi.NewCourierSocketHandler(fleet).RegisterRoutes(appCtx.Mux)
		},
		Background: background,
		Cleanup:    cleanup,
	}, nacosClient)
}
