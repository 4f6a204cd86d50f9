package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	PocketBase PocketBase `yaml:"pocketbase"`
	Web        Web        `yaml:"web"`
	Session    Session    `yaml:"session"`
	OTP        OTP        `yaml:"otp"`

	// File is an optional yaml file whose values override the environment.
	File string `env:"PBDEMO_CONFIG" yaml:"-"`
}

type PocketBase struct {
	URL string `env:"POCKETBASE_URL" envDefault:"http://127.0.0.1:8090" yaml:"url"`
}

type Web struct {
	Addr string `env:"PBDEMO_ADDR" envDefault:"localhost:8123" yaml:"addr"`
}

type Session struct {
	Lifetime time.Duration `env:"PBDEMO_SESSION_LIFETIME" envDefault:"24h" yaml:"lifetime"`
	// RedisAddr selects the redis session store; empty keeps sessions in memory.
	RedisAddr string `env:"PBDEMO_REDIS_ADDR" yaml:"redis_addr"`
}

type OTP struct {
	Rate  float64 `env:"PBDEMO_OTP_RATE" envDefault:"1" yaml:"rate"`
	Burst int     `env:"PBDEMO_OTP_BURST" envDefault:"5" yaml:"burst"`
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.File != "" {
		if err := loadFile(cfg.File, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
