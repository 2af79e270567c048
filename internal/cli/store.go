package cli

import (
	"fmt"
	"io"

	"github.com/aretw0/thunder/internal/config"
	"github.com/aretw0/thunder/pkg/adapters/file"
	"github.com/aretw0/thunder/pkg/adapters/memory"
	"github.com/aretw0/thunder/pkg/adapters/redis"
	"github.com/aretw0/thunder/pkg/adapters/sqlite"
	"github.com/aretw0/thunder/pkg/persistence/middleware"
	"github.com/aretw0/thunder/pkg/ports"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

// OpenStore builds the session store described by cfg, wrapped in the
// redaction and encryption middlewares when configured.
// The locker is non-nil only for redis.
func OpenStore(cfg config.StoreConfig) (ports.SessionStore, ports.DistributedLocker, io.Closer, error) {
	var (
		store  ports.SessionStore
		locker ports.DistributedLocker
		closer io.Closer = nopCloser
	)

	switch cfg.Kind {
	case config.StoreMemory, "":
		store = memory.NewStore()
	case config.StoreFile:
		store = file.New(cfg.Dir)
	case config.StoreRedis:
		var opts []redis.Option
		if cfg.RedisTTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.RedisTTL))
		}
		rs := redis.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, opts...)
		store, closer = rs, rs
		locker = redis.NewLocker(rs.Client(), "thunder:lock:")
	case config.StoreSQLite:
		ss, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		store, closer = ss, ss
	default:
		return nil, nil, nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}

	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		redact, err := middleware.NewRedactionMiddleware(cfg.Redact)
		if err != nil {
			closer.Close()
			return nil, nil, nil, err
		}
		mws = append(mws, redact)
	}
	if cfg.EncryptionKey != "" {
		encCfg, err := encryptionConfig(cfg)
		if err != nil {
			closer.Close()
			return nil, nil, nil, err
		}
		encrypt, err := middleware.NewEncryptionMiddleware(encCfg)
		if err != nil {
			closer.Close()
			return nil, nil, nil, err
		}
		mws = append(mws, encrypt)
	}
	return middleware.Chain(store, mws...), locker, closer, nil
}

func encryptionConfig(cfg config.StoreConfig) (middleware.EncryptionConfig, error) {
	active, err := config.DecodeKey(cfg.EncryptionKey)
	if err != nil {
		return middleware.EncryptionConfig{}, err
	}
	out := middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range cfg.FallbackKeys {
		key, err := config.DecodeKey(k)
		if err != nil {
			return middleware.EncryptionConfig{}, err
		}
		out.FallbackKeys = append(out.FallbackKeys, key)
	}
	return out, nil
}
