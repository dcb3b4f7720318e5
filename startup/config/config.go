package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	PricingDBHost  string
	PricingDBPort  string
	ApplyCacheHost string
	ApplyCachePort string
	JaegerAddress  string
	ScraperAddress string
	LogFilePath    string
}

func NewConfig() *Config {
	// .env is optional, containers set the environment directly
	_ = godotenv.Load()

	return &Config{
		Port:           os.Getenv("PRICING_SERVICE_PORT"),
		PricingDBHost:  os.Getenv("PRICING_DB_HOST"),
		PricingDBPort:  os.Getenv("PRICING_DB_PORT"),
		ApplyCacheHost: os.Getenv("APPLY_CACHE_HOST"),
		ApplyCachePort: os.Getenv("APPLY_CACHE_PORT"),
		JaegerAddress:  os.Getenv("JAEGER_ADDRESS"),
		ScraperAddress: os.Getenv("SCRAPER_ADDRESS"),
		LogFilePath:    os.Getenv("LOG_FILE_PATH"),
	}
}
