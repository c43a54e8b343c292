package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the struct pointed to by cfg,
// following its `env`, `envDefault` and `envSeparator` tags:
//
//	type Config struct {
//	    Port  int           `env:"HTTP_PORT" envDefault:"3000"`
//	    Hosts []string      `env:"ALLOWED_HOSTS" envSeparator:","`
//	    Wait  time.Duration `env:"WAIT" envDefault:"10s"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
