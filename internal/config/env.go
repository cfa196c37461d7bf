package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds runtime secrets and toggles that never live in roadmap.yml.
type Env struct {
	JWTSecret        string `env:"ROADMAP_JWT_SECRET"`
	JWTIssuer        string `env:"ROADMAP_JWT_ISSUER" envDefault:"roadmap"`
	JWTAudience      string `env:"ROADMAP_JWT_AUDIENCE" envDefault:"roadmap"`
	AllowActorHeader bool   `env:"ROADMAP_ALLOW_ACTOR_HEADER"`
	DevAuth          bool   `env:"ROADMAP_DEV_AUTH"`
	DatabaseURL      string `env:"ROADMAP_DATABASE_URL"`
	OTelEndpoint     string `env:"ROADMAP_OTEL_ENDPOINT"`
	OTelEnabled      bool   `env:"ROADMAP_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv parses Env from the process environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return Env{}, err
	}
	return e, nil
}
