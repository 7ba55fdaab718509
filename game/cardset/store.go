package cardset

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wricardo/mcp-training/memorymatch/game/service"
)

var (
	ErrCardSetNotFound = service.ErrCardSetNotFound
	ErrCardSetExists   = service.ErrCardSetExists
)

// Backend names accepted by Open
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Store is a card set store that holds resources
type Store interface {
	service.CardSetStore
	Close() error
}

// Options selects and configures a backend
type Options struct {
	Backend     string
	Dir         string
	RedisURL    string
	DatabaseURL string
}

// Open connects the configured backend
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	switch opts.Backend {
	case BackendFile, "":
		return NewFileStore(opts.Dir, logger)
	case BackendRedis:
		return NewRedisStoreFromURL(ctx, opts.RedisURL, logger)
	case BackendPostgres:
		return OpenPostgresStore(ctx, opts.DatabaseURL, logger)
	default:
		return nil, fmt.Errorf("unknown card set backend %q", opts.Backend)
	}
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
