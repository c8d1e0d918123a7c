// Package main provides the LawAudit API Server.
// Container entrypoint configured entirely from the environment; the lawaudit CLI's serve command is the flag-driven equivalent.
package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"lawaudit/api"
	"lawaudit/db/cache"
	"lawaudit/db/clickhouse"
	"lawaudit/db/postgres"
	"lawaudit/decision/policy"
	"lawaudit/pkg/platform"
)

func main() {
	_ = godotenv.Load()
	platform.InitLogger(platform.GetEnv("LOG_LEVEL", "info"), platform.GetEnv("ENV", "production") == "development")

	ctx := context.Background()
	config := api.ConfigFromEnv()

	var opts []api.Option

	if path := platform.GetEnv("POLICY_FILE", ""); path != "" {
		custom, err := policy.LoadFile(path)
		if err != nil {
			platform.LogFatal("Failed to load policy file", err)
		}
		opts = append(opts, api.WithPolicies(custom))
	}

	// Report store
	if dsn := platform.GetEnv("DATABASE_URL", ""); dsn != "" {
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			platform.LogFatal("Failed to connect to report store", err)
		}
		defer store.Close()
		if err := store.Init(ctx); err != nil {
			platform.LogFatal("Failed to initialize report store", err)
		}
		opts = append(opts, api.WithStore(store))
	}

	// Analytics
	if platform.GetEnvBool("ANALYTICS_ENABLED", false) {
		analytics, err := clickhouse.NewStore(clickhouse.ConfigFromEnv())
		if err != nil {
			platform.LogFatal("Failed to connect to ClickHouse", err)
		}
		defer analytics.Close()
		if err := analytics.Init(ctx); err != nil {
			platform.LogFatal("Failed to initialize ClickHouse schema", err)
		}
		opts = append(opts, api.WithAnalytics(analytics))
	}

	// Cache
	if addr := platform.GetEnv("REDIS_ADDR", ""); addr != "" {
		rc := cache.New(addr,
			platform.GetEnv("REDIS_PASSWORD", ""),
			platform.GetEnvInt("REDIS_DB", 0),
			platform.GetEnvDuration("CACHE_TTL", 0),
		)
		defer rc.Close()
		opts = append(opts, api.WithCache(rc))
	}

	server, err := api.NewServer(config, opts...)
	if err != nil {
		platform.LogFatal("Invalid server configuration", err)
	}

	if err := server.StartWithGracefulShutdown(); err != nil {
		log.Error().Err(err).Msg("Server failed")
	}
}
