package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"updown/internal/models"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Market   MarketConfig
	Engine   EngineConfig
	Telegram TelegramConfig
	Logging  LoggingConfig
	Profiles []BotProfile
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port           int
	Host           string
	DashboardUser  string // basic auth для дашборда, пусто = без авторизации
	DashboardHash  string // bcrypt-хеш пароля
	AllowedOrigins string // список origin через запятую, пусто или * = все
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// MarketConfig - настройки провайдеров рыночных данных
type MarketConfig struct {
	GammaBaseURL   string        // Polymarket Gamma API (метаданные рынков)
	ClobBaseURL    string        // Polymarket CLOB API (цены, стаканы)
	BinanceBaseURL string        // Binance klines
	RequestTimeout time.Duration // дедлайн одного запроса к провайдеру
	RateLimitRPS   float64       // запросов в секунду на провайдера
}

// EngineConfig - общие настройки торговых движков
type EngineConfig struct {
	TickInterval     time.Duration // период переоценки серий
	DetectorInterval time.Duration // период опроса детектора сигналов
	SampleInterval   time.Duration // минимум между замерами валидации
	Assets           []string      // отслеживаемые активы (eth, btc)
}

// TelegramConfig - настройки уведомлений
type TelegramConfig struct {
	Token   string // пусто = уведомления выключены
	Enabled bool
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level      string
	Format     string
	File       string // пусто = только stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// BuyStrategy определяет момент входа в первый шаг
type BuyStrategy string

const (
	BuySignal   BuyStrategy = "signal"   // покупка сразу по сигналу
	BuyValidate BuyStrategy = "validate" // покупка после проверки стабильности
)

// BotProfile - статическая конфигурация одного торгового движка.
// Один профиль = один независимый экземпляр движка.
type BotProfile struct {
	ID                    string
	SignalType            models.SignalType
	BuyStrategy           BuyStrategy
	MaxSteps              int
	FirstBetPercent       float64 // доля депозита, задающая целевую прибыль серии
	BaseDeposit           float64
	MaxPrice              float64 // потолок цены входа, проверяется на каждом шаге
	EntryFee              float64
	ExitFee               float64
	BreakEvenOnLastStep   bool          // последний шаг только отбивает убытки
	CooldownAfterFullLoss time.Duration // 0 = без карантина
}

// DefaultProfiles возвращает стандартный набор ботов.
// Профили различаются типом сигнала, глубиной мартингейла и стратегией входа.
func DefaultProfiles() []BotProfile {
	return []BotProfile{
		{
			ID:              "bot1",
			SignalType:      models.SignalThreeCandles,
			BuyStrategy:     BuySignal,
			MaxSteps:        4,
			FirstBetPercent: 0.02,
			BaseDeposit:     100,
			MaxPrice:        0.55,
			EntryFee:        0.015,
			ExitFee:         0.015,
		},
		{
			ID:                    "bot2",
			SignalType:            models.SignalTwoCandles,
			BuyStrategy:           BuySignal,
			MaxSteps:              3,
			FirstBetPercent:       0.015,
			BaseDeposit:           100,
			MaxPrice:              0.55,
			EntryFee:              0.015,
			ExitFee:               0.015,
			BreakEvenOnLastStep:   true,
			CooldownAfterFullLoss: 15 * time.Minute,
		},
		{
			ID:                    "bot3",
			SignalType:            models.SignalTwoCandles,
			BuyStrategy:           BuyValidate,
			MaxSteps:              3,
			FirstBetPercent:       0.015,
			BaseDeposit:           1000,
			MaxPrice:              0.55,
			EntryFee:              0.015,
			ExitFee:               0.015,
			BreakEvenOnLastStep:   true,
			CooldownAfterFullLoss: 15 * time.Minute,
		},
	}
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			DashboardUser:  getEnv("DASHBOARD_USER", ""),
			DashboardHash:  getEnv("DASHBOARD_PASSWORD_HASH", ""),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "updown"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Market: MarketConfig{
			GammaBaseURL:   getEnv("GAMMA_BASE_URL", "https://gamma-api.polymarket.com"),
			ClobBaseURL:    getEnv("CLOB_BASE_URL", "https://clob.polymarket.com"),
			BinanceBaseURL: getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
			RequestTimeout: getEnvAsDuration("MARKET_REQUEST_TIMEOUT", 5*time.Second),
			RateLimitRPS:   getEnvAsFloat("MARKET_RATE_LIMIT_RPS", 10),
		},
		Engine: EngineConfig{
			TickInterval:     getEnvAsDuration("TICK_INTERVAL", 5*time.Second),
			DetectorInterval: getEnvAsDuration("DETECTOR_INTERVAL", 10*time.Second),
			SampleInterval:   getEnvAsDuration("VALIDATION_SAMPLE_INTERVAL", 10*time.Second),
			Assets:           getEnvAsList("ASSETS", []string{"eth"}),
		},
		Telegram: TelegramConfig{
			Token: getEnv("TELEGRAM_TOKEN", ""),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
		},
		Profiles: DefaultProfiles(),
	}
	cfg.Telegram.Enabled = cfg.Telegram.Token != ""

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate проверяет диапазоны параметров и корректность профилей
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive, got %v", c.Engine.TickInterval)
	}
	if c.Market.RequestTimeout <= 0 {
		return fmt.Errorf("MARKET_REQUEST_TIMEOUT must be positive, got %v", c.Market.RequestTimeout)
	}
	if len(c.Engine.Assets) == 0 {
		return fmt.Errorf("ASSETS must list at least one asset")
	}

	seen := make(map[string]bool, len(c.Profiles))
	for i := range c.Profiles {
		p := &c.Profiles[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profile %q: %w", p.ID, err)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate profile id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Validate проверяет один профиль бота
func (p *BotProfile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !p.SignalType.Valid() {
		return fmt.Errorf("unknown signal type %q", p.SignalType)
	}
	if p.BuyStrategy != BuySignal && p.BuyStrategy != BuyValidate {
		return fmt.Errorf("unknown buy strategy %q", p.BuyStrategy)
	}
	if p.MaxSteps < 1 {
		return fmt.Errorf("max steps must be >= 1, got %d", p.MaxSteps)
	}
	if p.FirstBetPercent <= 0 || p.FirstBetPercent >= 1 {
		return fmt.Errorf("first bet percent must be in (0, 1), got %v", p.FirstBetPercent)
	}
	if p.BaseDeposit <= 0 {
		return fmt.Errorf("base deposit must be positive, got %v", p.BaseDeposit)
	}
	if p.MaxPrice <= 0 || p.MaxPrice >= 1 {
		return fmt.Errorf("max price must be in (0, 1), got %v", p.MaxPrice)
	}
	if p.EntryFee < 0 || p.EntryFee >= 1 || p.ExitFee < 0 || p.ExitFee >= 1 {
		return fmt.Errorf("fees must be in [0, 1)")
	}
	if p.CooldownAfterFullLoss < 0 {
		return fmt.Errorf("cooldown cannot be negative, got %v", p.CooldownAfterFullLoss)
	}
	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
