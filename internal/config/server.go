package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Empty DSN runs the server on the in-memory persister.
	PostgresDSN string `env:"POSTGRES_DSN"`

	// Empty URL accepts any identity token as an anonymous player.
	IdentityVerifyURL string `env:"IDENTITY_VERIFY_URL"`

	SessionTTLMins  int `env:"SESSION_TTL_MINUTES" envDefault:"120"`
	AccessTTLMins   int `env:"ACCESS_TOKEN_TTL_MINUTES" envDefault:"15"`
	RefreshTTLHours int `env:"REFRESH_TOKEN_TTL_HOURS" envDefault:"168"`
	SweepSecs       int `env:"SWEEP_INTERVAL_SECONDS" envDefault:"30"`

	BotsPerSession    int `env:"BOTS_PER_SESSION" envDefault:"2"`
	BotAmbientMinSecs int `env:"BOT_AMBIENT_MIN_SECONDS" envDefault:"20"`
	BotAmbientMaxSecs int `env:"BOT_AMBIENT_MAX_SECONDS" envDefault:"45"`
	BotAdvanceMinSecs int `env:"BOT_ADVANCE_MIN_SECONDS" envDefault:"2"`
	BotAdvanceMaxSecs int `env:"BOT_ADVANCE_MAX_SECONDS" envDefault:"6"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
