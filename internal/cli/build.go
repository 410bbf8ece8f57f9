package cli

import (
	"context"
	"fmt"

	"github.com/fortuna/scorebook/internal/cache"
	"github.com/fortuna/scorebook/internal/config"
	"github.com/fortuna/scorebook/internal/ingest/cricinfo"
	"github.com/fortuna/scorebook/internal/store"
	log "github.com/sirupsen/logrus"
)

// cleanup runs deferred closers in reverse order
type cleanup []func()

func (c *cleanup) add(fn func()) {
	*c = append(*c, fn)
}

func (c cleanup) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// openDatabase connects to PostgreSQL and applies pending migrations. The
// sink built over it owns the connection.
func openDatabase(ctx context.Context, cfg *config.Config) (*store.Database, error) {
	db, err := store.NewDatabase(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// openSink builds the configured sink. db is non-nil when PostgreSQL is in
// use; closing the sink closes it.
func openSink(ctx context.Context, cfg *config.Config) (store.Sink, *store.Database, error) {
	var (
		sinks []store.Sink
		db    *store.Database
	)

	if cfg.UsesCSV() {
		csvSink, err := store.NewCSVSink(cfg.Output.Dir)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, csvSink)
	}

	if cfg.UsesPostgres() {
		var err error
		db, err = openDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, store.NewPostgresSink(db))
	}

	if len(sinks) == 1 {
		return sinks[0], db, nil
	}
	return store.NewMultiSink(sinks...), db, nil
}

// openCache connects to Redis when a URL is configured. A nil cache means
// Redis is disabled; a connection failure is logged and also yields nil.
func openCache(ctx context.Context, cfg *config.Config, done *cleanup) *cache.RedisCache {
	if cfg.Redis.URL == "" {
		return nil
	}

	rc, err := cache.NewRedisCache(ctx, cfg.Redis.URL)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, continuing without page cache and event stream")
		return nil
	}
	done.add(func() { rc.Close() })
	return rc
}

// newIngester starts a browser client and wraps it with the page cache
func newIngester(cfg *config.Config, rc *cache.RedisCache, done *cleanup) (*cricinfo.Ingester, error) {
	client, err := cricinfo.NewClient(cricinfo.ClientConfig{
		Headless:     cfg.Browser.Headless,
		UserAgent:    cfg.Browser.UserAgent,
		PageTimeout:  cfg.Browser.PageTimeout,
		ReadyTimeout: cfg.Browser.ReadyTimeout,
		MinInterval:  cfg.Browser.MinInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	done.add(client.Close)

	var opts []cricinfo.IngesterOption
	if rc != nil {
		opts = append(opts, cricinfo.WithPageCache(rc, cfg.Redis.PageTTL))
	}
	return cricinfo.NewIngester(client, opts...), nil
}
