package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	Database struct {
		DSN     string        `mapstructure:"dsn"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Stripe struct {
		SecretKey      string        `mapstructure:"secretKey"`
		PublishableKey string        `mapstructure:"publishableKey"`
		Timeout        time.Duration `mapstructure:"timeout"`
	} `mapstructure:"stripe"`
}

// LoadConfig загружает конфигурацию из файла или переменных окружения.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env опционален: локальная разработка без него тоже допустима
		_ = godotenv.Load(path)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("app.port", "5000")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("database.timeout", 10*time.Second)
	viper.SetDefault("stripe.timeout", 10*time.Second)

	viper.AutomaticEnv() // Чтение переменных окружения

	// Явные привязки для переменных окружения без yaml-файла
	_ = viper.BindEnv("app.port", "PORT")
	_ = viper.BindEnv("app.env", "APP_ENV")
	_ = viper.BindEnv("database.dsn", "DATABASE_URL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = viper.BindEnv("stripe.secretKey", "STRIPE_SECRET_KEY")
	_ = viper.BindEnv("stripe.publishableKey", "STRIPE_PUBLISHABLE_KEY")

	if err := viper.ReadInConfig(); err != nil {
		// Файл конфигурации опционален, окружения достаточно
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
