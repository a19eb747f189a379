package config

import (
	"fmt"
	"os"
	"time"

	"restaurant_pos/internal/services"
	"restaurant_pos/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Port     string `validate:"required"`
	GoEnv    string
	LogLevel string

	Backend        string `validate:"oneof=postgres memory"`
	EventTransport string `validate:"oneof=postgres redis amqp memory"`

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBSchema   string

	RedisAddr     string `validate:"required_if=EventTransport redis"`
	RedisPassword string
	RedisDB       int
	AMQPURL       string `validate:"required_if=EventTransport amqp"`

	JWTSecret          string `validate:"required,min=16"`
	CORSAllowedOrigins []string

	SettleDelay        time.Duration `validate:"gte=0"`
	ResyncInterval     time.Duration `validate:"gte=0"`
	Timezone           string        `validate:"required"`
	PaymentURLTemplate string        `validate:"required"`
	RulesPath          string

	Location *time.Location `validate:"-"`
	Rules    Rules          `validate:"-"`
}

// Rules are restaurant tunables that can be overridden from a YAML file.
type Rules struct {
	Slots            services.SlotRules `yaml:"slots"`
	ReservationGuard time.Duration      `yaml:"reservation_guard" validate:"gt=0"`
	TaxRate          string             `yaml:"tax_rate" validate:"required"`
	DeliveryFee      string             `yaml:"delivery_fee" validate:"required"`
}

// DefaultRules returns the house rules used when no file overrides them.
func DefaultRules() Rules {
	return Rules{
		Slots:            services.DefaultSlotRules(),
		ReservationGuard: services.DefaultReservationGuard,
		TaxRate:          "0.10",
		DeliveryFee:      "0",
	}
}

// Pricing converts the configured rates into decimals.
func (r Rules) Pricing() (services.PricingRules, error) {
	tax, err := decimal.NewFromString(r.TaxRate)
	if err != nil {
		return services.PricingRules{}, fmt.Errorf("invalid tax_rate %q: %w", r.TaxRate, err)
	}
	fee, err := decimal.NewFromString(r.DeliveryFee)
	if err != nil {
		return services.PricingRules{}, fmt.Errorf("invalid delivery_fee %q: %w", r.DeliveryFee, err)
	}
	return services.PricingRules{TaxRate: tax, DeliveryFee: fee}, nil
}

// ConnString builds the lib/pq connection string.
func (c *Config) ConnString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// Load reads .env.<GO_ENV> or .env if present, then the process environment,
// then the optional rules file.
func Load() (*Config, error) {
	env := utils.Getenv("GO_ENV", "development")
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil {
			utils.LogDebug("No .env file found, using system environment variables")
		}
	} else {
		utils.LogInfo("Loaded configuration file", map[string]interface{}{"file": envFile})
	}

	cfg := &Config{
		Port:               utils.Getenv("PORT", "8080"),
		GoEnv:              env,
		LogLevel:           utils.Getenv("LOG_LEVEL", "info"),
		Backend:            utils.Getenv("BACKEND", "postgres"),
		EventTransport:     utils.Getenv("EVENT_TRANSPORT", "postgres"),
		DBHost:             utils.Getenv("DB_HOST", "localhost"),
		DBPort:             utils.Getenv("DB_PORT", "5432"),
		DBUser:             utils.Getenv("DB_USER", "pos_user"),
		DBPassword:         utils.Getenv("DB_PASSWORD", "pos_password"),
		DBName:             utils.Getenv("DB_NAME", "restaurant_pos"),
		DBSSLMode:          utils.Getenv("DB_SSLMODE", "disable"),
		DBSchema:           utils.Getenv("DB_SCHEMA_PATH", ""),
		RedisAddr:          utils.Getenv("REDIS_ADDR", ""),
		RedisPassword:      utils.Getenv("REDIS_PASSWORD", ""),
		RedisDB:            utils.GetenvInt("REDIS_DB", 0),
		AMQPURL:            utils.Getenv("AMQP_URL", ""),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		CORSAllowedOrigins: utils.SplitCSV(utils.Getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")),
		SettleDelay:        utils.GetenvDuration("SETTLE_DELAY", services.DefaultSettleDelay),
		ResyncInterval:     utils.GetenvDuration("RESYNC_INTERVAL", 5*time.Minute),
		Timezone:           utils.Getenv("RESTAURANT_TZ", "Asia/Ho_Chi_Minh"),
		PaymentURLTemplate: utils.Getenv("PAYMENT_URL_TEMPLATE", "https://pay.example.com/checkout?order=%d&amount=%s"),
		RulesPath:          utils.Getenv("RULES_PATH", ""),
		Rules:              DefaultRules(),
	}

	if cfg.RulesPath != "" {
		rules, err := LoadRules(cfg.RulesPath)
		if err != nil {
			return nil, err
		}
		cfg.Rules = rules
	}
	if v := os.Getenv("TAX_RATE"); v != "" {
		cfg.Rules.TaxRate = v
	}
	if v := os.Getenv("DELIVERY_FEE"); v != "" {
		cfg.Rules.DeliveryFee = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid RESTAURANT_TZ %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc
	cfg.Rules.Slots.Location = loc
	return cfg, nil
}

// LoadRules reads a YAML rules file on top of DefaultRules.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return rules, nil
}

var validate = validator.New()

// Validate checks the configuration and the rules it carries.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validate.Struct(c.Rules); err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}
	if err := c.Rules.Slots.Validate(); err != nil {
		return fmt.Errorf("invalid slot rules: %w", err)
	}
	if _, err := c.Rules.Pricing(); err != nil {
		return err
	}
	return nil
}
