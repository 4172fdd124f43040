// Package auction parses auction service flags and launches the service.
package auction

import (
	"context"
	"flag"

	entrypoint "github.com/gavelworks/auctionhouse/internal/platform/cmd"
	server "github.com/gavelworks/auctionhouse/internal/services/auction/app"
)

// Config holds auction command configuration.
type Config struct {
	Port int `env:"AUCTION_HOUSE_PORT" envDefault:"8091"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The auction HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the auction HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAuction, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
