package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the storefront API and the
// vendor integrations it talks to.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFile         string

	MySQLDSN string

	AuthJWTSecret string
	AdminUsername string
	AdminPassword string

	ModelCostsFile    string
	SignupCredits     int
	PromoBonusCredits int

	KIEAPIKey      string
	KIEBaseURL     string
	RequestTimeout time.Duration

	PrintfulAPIKey     string
	PrintfulBaseURL    string
	PrintfulStoreID    string
	PrintfulPricesPath string
	Currency           string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PriceCacheTTL time.Duration

	PayPalClientID     string
	PayPalClientSecret string
	PayPalBaseURL      string
	PayPalWebhookID    string
	PayPalReturnURL    string
	PayPalCancelURL    string

	DefaultPlanTitle      string
	DefaultPlanPriceMinor int
	DefaultPlanCredits    int

	TelegramBotToken  string
	TelegramOpsChatID int64

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// placeholderAdminPassword is the value shipped in example env files.
const placeholderAdminPassword = "change-me"

// Load reads configuration from an optional env file and the process
// environment, applying defaults for everything that is not a secret.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultKIEBaseURL = "https://api.kie.ai"

	cfg := Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:    time.Second * time.Duration(getInt("SHUTDOWN_TIMEOUT_SECONDS", 10)),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            os.Getenv("LOG_FILE"),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		ModelCostsFile:     os.Getenv("MODEL_COSTS_FILE"),
		SignupCredits:      getInt("SIGNUP_CREDITS", 10),
		PromoBonusCredits:  getInt("PROMO_BONUS_CREDITS", 20),
		KIEBaseURL:         normalizeKIEBaseURL(getEnv("KIE_BASE_URL", defaultKIEBaseURL), defaultKIEBaseURL),
		RequestTimeout:     time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		PrintfulBaseURL:    strings.TrimRight(getEnv("PRINTFUL_BASE_URL", "https://api.printful.com"), "/"),
		PrintfulStoreID:    os.Getenv("PRINTFUL_STORE_ID"),
		PrintfulPricesPath: getEnv("PRINTFUL_PRICES_PATH", "/v2/catalog-variants/prices"),
		Currency:           strings.ToUpper(getEnv("STORE_CURRENCY", "USD")),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		PriceCacheTTL:      time.Second * time.Duration(getInt("PRICE_CACHE_TTL_SECONDS", 900)),
		PayPalBaseURL:      strings.TrimRight(getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"), "/"),
		PayPalWebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
		PayPalReturnURL:    getEnv("PAYPAL_RETURN_URL", "http://localhost:3000/checkout/return"),
		PayPalCancelURL:    getEnv("PAYPAL_CANCEL_URL", "http://localhost:3000/cart"),
		DefaultPlanTitle:   getEnv("DEFAULT_PLAN_TITLE", "Credit pack"),
		DefaultPlanCredits: getInt("DEFAULT_PLAN_CREDITS", 100),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramOpsChatID:  getInt64("TELEGRAM_OPS_CHAT_ID", 0),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3Region:           os.Getenv("S3_REGION"),
		S3AccessKey:        os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:        os.Getenv("S3_SECRET_KEY"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:    os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:     getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:           getEnv("S3_PREFIX", "generations"),
	}

	cfg.DefaultPlanPriceMinor = getInt("DEFAULT_PLAN_PRICE_MINOR_UNITS", 999)
	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.AuthJWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.KIEAPIKey = os.Getenv("KIE_API_KEY")
	cfg.PrintfulAPIKey = os.Getenv("PRINTFUL_API_KEY")
	cfg.PayPalClientID = os.Getenv("PAYPAL_CLIENT_ID")
	cfg.PayPalClientSecret = os.Getenv("PAYPAL_CLIENT_SECRET")

	var missing []string
	required := []struct {
		key   string
		value string
	}{
		{"MYSQL_DSN", cfg.MySQLDSN},
		{"AUTH_JWT_SECRET", cfg.AuthJWTSecret},
		{"KIE_API_KEY", cfg.KIEAPIKey},
		{"PRINTFUL_API_KEY", cfg.PrintfulAPIKey},
		{"PAYPAL_CLIENT_ID", cfg.PayPalClientID},
		{"PAYPAL_CLIENT_SECRET", cfg.PayPalClientSecret},
		{"S3_REGION", cfg.S3Region},
		{"S3_ACCESS_KEY", cfg.S3AccessKey},
		{"S3_SECRET_KEY", cfg.S3SecretKey},
		{"S3_BUCKET", cfg.S3Bucket},
		{"S3_PUBLIC_BASE_URL", cfg.S3PublicBaseURL},
		{"ADMIN_PASSWORD", cfg.AdminPassword},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramOpsChatID == 0 {
		missing = append(missing, "TELEGRAM_OPS_CHAT_ID")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}
	if cfg.AdminPassword == placeholderAdminPassword {
		return Config{}, fmt.Errorf("ADMIN_PASSWORD is still the placeholder %q", placeholderAdminPassword)
	}

	return cfg, nil
}

// normalizeKIEBaseURL ensures we always hit the API host. The root kie.ai
// domain serves HTML instead of JSON.
func normalizeKIEBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	if parsed.Host == "kie.ai" {
		parsed.Host = "api.kie.ai"
	}

	return parsed.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// loadEnvFile loads the first env file it finds. Running without one is
// fine: containers get their configuration from the real environment.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
