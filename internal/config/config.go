// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/janpfeifer/GoOracle/internal/game"
)

type Config struct {
	Addr   string
	DBPath string
	Speed  game.Speed
	Strict bool
	WebDir string
}

// Load reads the GOORACLE_* environment variables, using defaults for the unset ones.
func Load() (Config, error) {
	c := Config{
		Addr:   envOr("GOORACLE_ADDR", ":8080"),
		DBPath: envOr("GOORACLE_DB", "gooracle.db"),
		Speed:  game.SpeedNormal,
		WebDir: envOr("GOORACLE_WEB_DIR", "web"),
	}

	if v := os.Getenv("GOORACLE_SPEED"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GOORACLE_SPEED %q: %w", v, err)
		}
		speed, err := game.ParseSpeed(n)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GOORACLE_SPEED %q: %w", v, err)
		}
		c.Speed = speed
	}

	if v := os.Getenv("GOORACLE_STRICT"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GOORACLE_STRICT %q: %w", v, err)
		}
		c.Strict = strict
	}

	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
