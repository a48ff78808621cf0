package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicdesk/backend/internal/api"
	"civicdesk/backend/internal/api/handler"
	"civicdesk/backend/internal/auth"
	"civicdesk/backend/internal/chathub"
	"civicdesk/backend/internal/classifier"
	"civicdesk/backend/internal/complaint"
	"civicdesk/backend/internal/config"
	"civicdesk/backend/internal/events"
	"civicdesk/backend/internal/geo"
	"civicdesk/backend/internal/localization"
	"civicdesk/backend/internal/logger"
	"civicdesk/backend/internal/mailer"
	"civicdesk/backend/internal/otp"
	"civicdesk/backend/internal/ratelimit"
	"civicdesk/backend/internal/storage"
	"civicdesk/backend/internal/telegram"
	"civicdesk/backend/internal/uploads"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const janitorInterval = time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not loaded")
	}
	cfg := config.Load()

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format, "civicdesk-api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	// 1. Ініціалізація залежностей
	db, err := storage.OpenPostgres(cfg.Database.DSN())
	if err != nil {
		return err
	}
	if err := storage.Migrate(db); err != nil {
		return err
	}
	rdb, err := storage.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	zl.Info("database connections established, migrations complete", zap.Bool("redis", rdb != nil))

	store := storage.NewStorageService(db, rdb)

	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		natsPub, err := events.Connect(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer natsPub.Close()
		publisher = natsPub
	}

	up, err := uploads.NewStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	var mail mailer.Sender = mailer.LogSender{Logger: zl}
	if cfg.Mail.ResendAPIKey != "" {
		mail = mailer.NewResendClient(cfg.Mail.BaseURL, cfg.Mail.ResendAPIKey, cfg.Mail.From, zl)
	}

	limiters, chatLimiter := buildLimiters(ctx, cfg.RateLimit, rdb, zl)

	// 2. Ініціалізація Chat Hub
	var broker chathub.Broker
	if rdb != nil {
		broker = store
	}
	hub := chathub.NewManagerService(store, broker, chatLimiter, zl.Named("chathub"))
	go hub.Run(ctx)
	if err := hub.StartPubSubListener(ctx); err != nil {
		return err
	}

	fence := geo.Fence{
		Center:   geo.Point{Lat: cfg.Geofence.CenterLat, Lon: cfg.Geofence.CenterLon},
		RadiusKm: cfg.Geofence.RadiusKm,
	}
	complaints := complaint.NewService(store, fence, publisher, zl.Named("complaint"))

	if cfg.Telegram.BotToken != "" {
		bot, err := telegram.NewBotAPI(cfg.Telegram.BotToken, zl)
		if err != nil {
			// бот не обов'язковий, працюємо без нього
			zl.Error("telegram bot disabled", zap.Error(err))
		} else {
			notifier := telegram.NewNotifier(bot, cfg.Telegram.AdminChatID, zl.Named("telegram"))
			go notifier.Run(ctx)
			complaints.SetMirror(notifier)
			botService := telegram.NewBotService(bot, store, hub, localization.Default(), cfg.Telegram.AdminChatID, zl.Named("telegram"))
			go botService.Run(ctx)
		}
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	h := handler.NewHandler(handler.Deps{
		Auth:       auth.NewService(store, tokens, zl.Named("auth")),
		Complaints: complaints,
		OTP:        otp.NewService(store, mail),
		Hub:        hub,
		Store:      store,
		Uploads:    up,
		Classifier: classifier.NewScriptClassifier(cfg.Classifier, zl.Named("classifier")),
		Log:        zl,
	})

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(h, api.RouterConfig{
		Tokens:    tokens,
		Limiters:  limiters,
		UploadDir: up.Dir,
		Log:       zl,
	})

	// Запуск HTTP-сервера
	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildLimiters creates the HTTP tiers and the chat limiter. The redis backend
// is used only when requested and a Redis client is available.
func buildLimiters(ctx context.Context, cfg config.RateLimitConfig, rdb *redis.Client, zl *zap.Logger) (api.Limiters, ratelimit.Limiter) {
	if !cfg.Enabled {
		zl.Warn("rate limiting disabled")
		return api.Limiters{}, ratelimit.Unlimited
	}

	useRedis := cfg.Backend == "redis" && rdb != nil
	if cfg.Backend == "redis" && rdb == nil {
		zl.Warn("RATE_LIMIT_BACKEND=redis without REDIS_ADDR, using memory limiter")
	}

	newLimiter := func(name string, rule config.RateLimitRule) ratelimit.Limiter {
		if useRedis {
			return ratelimit.NewRedisLimiter(rdb, name, rule.Limit, rule.Window)
		}
		sw := ratelimit.NewSlidingWindow(rule.Limit, rule.Window, nil)
		sw.StartJanitor(ctx, janitorInterval)
		return sw
	}

	return api.Limiters{
		IP:       newLimiter("ip", cfg.IP),
		Auth:     newLimiter("auth", cfg.Auth),
		AI:       newLimiter("ai", cfg.AI),
		Identity: newLimiter("identity", cfg.Identity),
	}, newLimiter("chat", cfg.Chat)
}
