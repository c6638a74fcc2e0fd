package config

import "github.com/caarlos0/env/v11"

// BotConfig drives the standalone dice-bot client, not the in-server
// director.
type BotConfig struct {
	ServerURL   string `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	DisplayName string `env:"BOT_DISPLAY_NAME" envDefault:"parlor-bot"`
	Turns       int    `env:"BOT_TURNS" envDefault:"5"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
