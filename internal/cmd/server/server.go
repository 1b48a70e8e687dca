// Package server parses room command flags and composes the service entrypoint.
package server

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/lowrenn/inkroom/internal/platform/cmd"
	app "github.com/lowrenn/inkroom/internal/services/room/app"
)

// Config holds room command configuration.
type Config struct {
	HTTPAddr string `env:"INKROOM_HTTP_ADDR" envDefault:":8080"`
	DBPath   string `env:"INKROOM_DB_PATH"   envDefault:"inkroom.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "room HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "room SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the room app and serves it until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRoom, func(context.Context) error {
		if err := app.Run(ctx, app.Config{
			HTTPAddr: cfg.HTTPAddr,
			DBPath:   cfg.DBPath,
		}); err != nil {
			return fmt.Errorf("serve room: %w", err)
		}
		return nil
	})
}
