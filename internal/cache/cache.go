// Package cache provee un cache clave/valor con dos backends:
//   - memory: in-process (go-cache), default en desarrollo y tests
//   - redis: compartido entre instancias
//
// El store lo usa para memorizar la resolución de proyectos (tenant → driver/DSN),
// incluidas las resoluciones negativas.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get retorna ErrNotFound si la key no existe o expiró.
	Get(ctx context.Context, key string) (string, error)
	// Set guarda un valor. ttl 0 = sin expiración.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Config configuración para crear un cliente.
type Config struct {
	Kind   string // "memory" | "redis"
	Prefix string

	// redis
	Addr     string
	Password string
	DB       int

	// memory
	CleanupInterval time.Duration
}

// ErrNotFound key inexistente o expirada.
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound indica si err es ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// New crea un cliente según cfg.Kind.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "memory":
		return NewMemory(cfg.Prefix, cfg.CleanupInterval), nil
	case "redis":
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("cache: unknown kind %q", cfg.Kind)
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
