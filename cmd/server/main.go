package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"updown/internal/api"
	"updown/internal/bot"
	"updown/internal/config"
	"updown/internal/detector"
	"updown/internal/market"
	"updown/internal/notify"
	"updown/internal/repository"
	"updown/internal/websocket"
	"updown/pkg/ratelimit"
	"updown/pkg/utils"
)

func main() {
	// .env опционален: в проде конфигурация приходит из окружения
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(utils.LoggerOptions{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logger.Sync()

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("не удалось подключиться к базе данных", zap.Error(err))
	}
	defer db.Close()
	logger.Info("подключение к базе установлено",
		zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	if err := repository.Migrate(db); err != nil {
		logger.Fatal("миграции не применились", zap.Error(err))
	}

	// Репозитории
	seriesRepo := repository.NewSeriesRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	signalRepo := repository.NewSignalRepository(db)
	subscriberRepo := repository.NewSubscriberRepository(db)

	// Провайдеры рыночных данных: Polymarket для цен и контекста серий,
	// Binance для свечей детектора. У каждого свой лимитер.
	httpCfg := market.DefaultHTTPClientConfig()
	if cfg.Market.RequestTimeout > 0 {
		httpCfg.RequestTimeout = cfg.Market.RequestTimeout
	}
	httpClient := market.NewHTTPClient(httpCfg)
	defer httpClient.Close()
	polymarket := market.NewPolymarketProvider(
		cfg.Market.GammaBaseURL,
		cfg.Market.ClobBaseURL,
		httpClient,
		ratelimit.NewRateLimiter(cfg.Market.RateLimitRPS, cfg.Market.RateLimitRPS*2),
		logger.Named("polymarket"),
	)
	binance := market.NewBinanceProvider(
		cfg.Market.BinanceBaseURL,
		httpClient,
		ratelimit.NewRateLimiter(cfg.Market.RateLimitRPS, cfg.Market.RateLimitRPS*2),
		logger.Named("binance"),
	)

	// WebSocket-хаб для дашборда
	hub := websocket.NewHub(logger.Named("ws"))
	go hub.Run()

	// Telegram-уведомления, выключаются пустым токеном
	var notifier bot.Notifier
	var telegram *notify.Telegram
	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		telegram, err = notify.NewTelegram(cfg.Telegram.Token, subscriberRepo, logger.Named("telegram"))
		if err != nil {
			logger.Fatal("не удалось подключить telegram-бота", zap.Error(err))
		}
		notifier = telegram
	}

	// Торговые движки: один на профиль
	engines := make([]*bot.Engine, 0, len(cfg.Profiles))
	for _, profile := range cfg.Profiles {
		engines = append(engines, bot.NewEngine(bot.Options{
			Profile:        profile,
			Series:         seriesRepo,
			Stats:          statsRepo,
			Context:        polymarket,
			Oracle:         polymarket,
			Notifier:       notifier,
			Publisher:      hub,
			Logger:         logger.Named("engine"),
			TickInterval:   cfg.Engine.TickInterval,
			SampleInterval: cfg.Engine.SampleInterval,
			Assets:         cfg.Engine.Assets,
		}))
	}
	router := bot.NewRouter(logger.Named("router"), engines...)

	// Детектор сигналов поверх свечей Binance
	det := detector.New(detector.Options{
		Provider:  binance,
		Signals:   signalRepo,
		Router:    router,
		Publisher: hub,
		Logger:    logger.Named("detector"),
		Assets:    cfg.Engine.Assets,
		Interval:  cfg.Engine.DetectorInterval,
	})

	rootCtx, stop := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	for _, engine := range engines {
		wg.Add(1)
		go func(e *bot.Engine) {
			defer wg.Done()
			e.Start(rootCtx)
		}(engine)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		det.Run(rootCtx)
	}()
	if telegram != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			telegram.Run(rootCtx)
		}()
	}

	// HTTP API и дашборд
	mux := api.NewRouter(api.Dependencies{
		Config:  cfg,
		DB:      db,
		Engines: engines,
		Series:  seriesRepo,
		Stats:   statsRepo,
		Signals: signalRepo,
		Hub:     hub,
		Logger:  logger.Named("http"),
	})
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http-сервер запущен", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http-сервер упал", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("остановка по сигналу")

	// Сначала гасим движки и детектор, чтобы не оборвать тик на середине,
	// потом HTTP-сервер.
	stop()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http-сервер не остановился штатно", zap.Error(err))
	}

	logger.Info("сервер остановлен")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
