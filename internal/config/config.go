package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration values.
type Config struct {
	Secret      string `envconfig:"SECRET" default:"dev_secret"`
	DatabaseDSN string `envconfig:"DATABASE_DSN" default:"file:dukapos.db?_pragma=foreign_keys(1)"`
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	SeedCSV     string `envconfig:"SEED_CSV" default:""`

	Mpesa MpesaConfig `envconfig:"MPESA"`
}

// MpesaConfig carries the Daraja credentials. The defaults point at the
// sandbox; production deployments override all of them.
type MpesaConfig struct {
	BaseURL        string `envconfig:"BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	ConsumerKey    string `envconfig:"CONSUMER_KEY" default:""`
	ConsumerSecret string `envconfig:"CONSUMER_SECRET" default:""`
	ShortCode      string `envconfig:"SHORT_CODE" default:""`
	Passkey        string `envconfig:"PASSKEY" default:""`
	CallbackURL    string `envconfig:"CALLBACK_URL" default:""`
}

// Load reads configuration from the environment, with .env overrides
// for local development.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
