package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/imagine-it/storefront/internal/auth"
	"github.com/imagine-it/storefront/internal/cache"
	"github.com/imagine-it/storefront/internal/config"
	"github.com/imagine-it/storefront/internal/credits"
	"github.com/imagine-it/storefront/internal/database"
	"github.com/imagine-it/storefront/internal/kie"
	"github.com/imagine-it/storefront/internal/notify"
	"github.com/imagine-it/storefront/internal/paypal"
	"github.com/imagine-it/storefront/internal/printful"
	"github.com/imagine-it/storefront/internal/repository"
	"github.com/imagine-it/storefront/internal/server"
	"github.com/imagine-it/storefront/internal/service"
	"github.com/imagine-it/storefront/internal/storage"
	"github.com/imagine-it/storefront/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, cfg.MySQLDSN); err != nil {
		log.Fatalf("database migrate: %v", err)
	}
	db, err := database.Connect(ctx, cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	profileRepo := repository.NewProfileRepository(db)
	generationRepo := repository.NewGenerationRepository(db)
	promoRepo := repository.NewPromoRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	planRepo := repository.NewPlanRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	costs, err := credits.LoadCostTable(cfg.ModelCostsFile)
	if err != nil {
		log.Fatalf("model costs: %v", err)
	}
	gate := credits.NewGate(costs, profileRepo, logr)

	uploader, err := storage.NewUploader(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
		Prefix:        cfg.S3Prefix,
	})
	if err != nil {
		log.Fatalf("storage uploader: %v", err)
	}

	kieClient := kie.NewClient(cfg, logr)
	printfulClient := printful.NewClient(cfg, logr)
	paypalClient := paypal.NewClient(cfg, logr)

	quoteCache := newQuoteCache(ctx, cfg, logr)
	notifier := newNotifier(cfg, logr)

	planService := service.NewPlanService(planRepo, service.DefaultPlan{
		Title:           cfg.DefaultPlanTitle,
		Currency:        cfg.Currency,
		PriceMinorUnits: cfg.DefaultPlanPriceMinor,
		Credits:         cfg.DefaultPlanCredits,
	})
	if err := planService.EnsureDefaultPlan(ctx); err != nil {
		log.Fatalf("ensure default plan: %v", err)
	}

	priceService := service.NewPriceService(printfulClient, quoteCache, logr)
	services := server.Services{
		Profiles:    service.NewProfileService(profileRepo, cfg.SignupCredits),
		Promos:      service.NewPromoService(promoRepo, cfg.PromoBonusCredits),
		Generations: service.NewGenerationService(logr, gate, profileRepo, generationRepo, kieClient, uploader),
		Plans:       planService,
		Payments:    service.NewPaymentService(logr, paymentRepo, planService, paypalClient, notifier),
		Carts:       service.NewCartService(cartRepo, priceService, cfg.Currency, logr),
		Checkout:    service.NewCheckoutService(logr, cartRepo, orderRepo, priceService, paypalClient, printfulClient, notifier, cfg.Currency),
		Mockups:     service.NewMockupService(printfulClient),
	}

	srv := server.NewServer(server.Options{
		Addr:            cfg.HTTPAddr,
		AdminUsername:   cfg.AdminUsername,
		AdminPassword:   cfg.AdminPassword,
		ShutdownTimeout: cfg.ShutdownTimeout,
		WriteTimeout:    cfg.RequestTimeout * 3,
		Health:          db.PingContext,
	}, logr, auth.NewVerifier(cfg.AuthJWTSecret), services)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("http server stopped", "err", err)
	}
}

// newQuoteCache connects to Redis when REDIS_ADDR is set. Pricing works
// without it, hitting Printful on every cart view.
func newQuoteCache(ctx context.Context, cfg config.Config, logr *slog.Logger) cache.QuoteCache {
	if cfg.RedisAddr == "" {
		logr.Info("redis not configured, price quotes are not cached")
		return cache.Noop{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logr.Warn("redis ping failed, quotes will be fetched until it recovers", "addr", cfg.RedisAddr, "err", err)
	}
	return cache.NewRedisQuoteCache(client, cfg.PriceCacheTTL)
}

func newNotifier(cfg config.Config, logr *slog.Logger) notify.Notifier {
	if cfg.TelegramBotToken == "" {
		return notify.Noop{}
	}
	tg, err := notify.NewTelegram(cfg.TelegramBotToken, "", cfg.TelegramOpsChatID, logr)
	if err != nil {
		logr.Error("telegram notifier disabled", "err", err)
		return notify.Noop{}
	}
	return tg
}
