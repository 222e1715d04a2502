package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adxchange/internal/admin"
	"adxchange/internal/adserver"
	"adxchange/internal/ads"
	"adxchange/internal/audit"
	"adxchange/internal/auth"
	"adxchange/internal/bots"
	"adxchange/internal/botkey"
	"adxchange/internal/clicktracking"
	"adxchange/internal/config"
	"adxchange/internal/health"
	"adxchange/internal/httpserver"
	"adxchange/internal/moderation"
	"adxchange/internal/payment/click"
	"adxchange/internal/payment/ipn"
	"adxchange/internal/payment/payme"
	"adxchange/internal/platform/cache"
	"adxchange/internal/platform/db"
	"adxchange/internal/platform/logging"
	"adxchange/internal/pricing"
	"adxchange/internal/telegramadapter"
	"adxchange/internal/wallet"
	"adxchange/internal/withdraw"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.UIDist != "" {
		if _, err := os.Stat(cfg.UIDist); err != nil {
			log.Fatal(err)
		}
	}

	logger := logging.New(cfg.LogLevel, false)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	c, err := cache.New(cfg.RedisDSN)
	if err != nil {
		log.Fatal(err)
	}

	walletSvc := wallet.NewService(pool)
	auditSvc := audit.NewService(pool)
	pricingStore := pricing.NewStore(pool, c)

	adsSvc := ads.NewService(pool, walletSvc, auditSvc)
	adsHandler := ads.NewHandler(adsSvc, pricingStore)

	botsSvc := bots.NewService(pool)
	botsHandler := bots.NewHandler(botsSvc)

	botkeySvc := botkey.NewService(botsSvc, []byte(cfg.JWTSecret), cfg.JWTIssuer)
	botkeyHandler := botkey.NewHandler(botkeySvc, botsSvc)

	withdrawSvc := withdraw.NewService(pool, walletSvc, cfg.WithdrawMinUSD, cfg.WithdrawMaxDailyUSD, cfg.WithdrawFeeUSD)
	withdrawHandler := withdraw.NewHandler(withdrawSvc)

	clickTrackingSvc := clicktracking.NewService(pool)
	clickTrackingHandler := clicktracking.NewHandler(clickTrackingSvc)

	adserverSvc := adserver.NewService(pool, botkeySvc, botsSvc, adsSvc, walletSvc, c, cfg.DefaultPlatformFeePct, cfg.PlatformBaseURL)
	adserverHandler := adserver.NewHandler(adserverSvc)

	authSvc := auth.NewService(pool, c, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.AccessTTL, cfg.AdminAccessTTL, cfg.RefreshTTL, cfg.TelegramBotUsername, cfg.PlatformBaseURL)
	authHandler := auth.NewHandler(authSvc)

	bus := moderation.NewBus()
	moderationSvc := moderation.NewService(pool, adsSvc, botsSvc, withdrawSvc, auditSvc, bus)
	moderationSvc.SetNotifier(telegramadapter.NewLoggingAdapter(logger))

	paymeSvc := payme.NewService(pool, walletSvc, cfg.PaymeMerchantID, cfg.PaymeSecretKey, cfg.USDLocalRate)
	paymeHandler := payme.NewHandler(paymeSvc)

	clickGatewaySvc := click.NewService(pool, walletSvc, cfg.ClickServiceID, cfg.ClickMerchantID, cfg.ClickSecretKey, cfg.USDLocalRate)
	clickGatewayHandler := click.NewHandler(clickGatewaySvc)

	ipnSvc := ipn.NewService(pool, walletSvc, cfg.IPNSecretKey)
	ipnHandler := ipn.NewHandler(ipnSvc)

	adminHandler := admin.NewHandler(pool, cfg.AdminJWTSecret, moderationSvc, pricingStore)
	moderationWS := httpserver.NewModerationWSHandler(bus, cfg.AdminJWTSecret, cfg.WebSocketOrigin)

	startedAt := time.Now().UTC()
	healthHandler := health.NewHandler(pool, c, startedAt, cfg.HTTPAddr, cfg.TelegramBotUsername, cfg.InternalToken)
	healthHandler.SetQueueDepth(func(ctx context.Context) (adsPending, botsPending, withdrawalsPending int64) {
		adsPending, _ = adsSvc.CountPending(ctx)
		botsPending, _ = botsSvc.CountPending(ctx)
		withdrawalsPending, _ = withdrawSvc.CountPending(ctx)
		return adsPending, botsPending, withdrawalsPending
	})

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:         authHandler,
		AdsHandler:          adsHandler,
		BotsHandler:         botsHandler,
		BotKeyHandler:       botkeyHandler,
		AdServerHandler:     adserverHandler,
		WithdrawHandler:     withdrawHandler,
		ClickHandler:        clickTrackingHandler,
		PaymeHandler:        paymeHandler,
		ClickGatewayHandler: clickGatewayHandler,
		IPNHandler:          ipnHandler,
		AdminHandler:        adminHandler,
		HealthHandler:       healthHandler,
		AuthService:         authSvc,
		Cache:               c,
		InternalToken:       cfg.InternalToken,
		JWTSecret:           cfg.AdminJWTSecret,
		ModerationWSHandler: moderationWS,
		UIDist:              cfg.UIDist,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	logger.Info("server listening", "addr", cfg.HTTPAddr)
	logger.Info("health endpoint", "url", "http://localhost"+cfg.HTTPAddr+"/health")
	if cfg.UIDist != "" {
		logger.Info("serving ui dist", "dir", cfg.UIDist)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
