package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"lawaudit/db"
	"lawaudit/db/cache"
	"lawaudit/db/clickhouse"
	"lawaudit/db/postgres"
	auditerrors "lawaudit/pkg/errors"
)

// openStore connects to the named report store and ensures its schema exists
func openStore(c *cli.Context, kind string) (db.ReportStore, error) {
	switch kind {
	case "postgres":
		dsn := c.String("database-url")
		if dsn == "" {
			return nil, cli.Exit("--database-url (DATABASE_URL) is required for the postgres store", ExitInputError)
		}
		store, err := postgres.Open(c.Context, dsn)
		if err != nil {
			return nil, auditerrors.NewStoreError("connect", err)
		}
		if err := store.Init(c.Context); err != nil {
			store.Close()
			return nil, auditerrors.NewStoreError("init", err)
		}
		return store, nil

	case "clickhouse":
		store, err := openClickHouse(c)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, cli.Exit(fmt.Sprintf("unknown store %q (postgres, clickhouse)", kind), ExitInputError)
	}
}

func openClickHouse(c *cli.Context) (*clickhouse.Store, error) {
	store, err := clickhouse.NewStore(clickhouseConfig(c))
	if err != nil {
		return nil, auditerrors.NewStoreError("connect", err)
	}
	if err := store.Init(c.Context); err != nil {
		store.Close()
		return nil, auditerrors.NewStoreError("init", err)
	}
	return store, nil
}

// openCache returns nil when no Redis address is configured
func openCache(c *cli.Context) *cache.Cache {
	addr := c.String("redis-addr")
	if addr == "" {
		return nil
	}
	log.Info().Str("addr", addr).Msg("Report cache enabled")
	return cache.New(addr, c.String("redis-password"), 0, c.Duration("cache-ttl"))
}
