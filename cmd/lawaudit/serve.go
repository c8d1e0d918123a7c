package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"lawaudit/api"
	"lawaudit/decision/policy"
	auditerrors "lawaudit/pkg/errors"
)

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the LawAudit API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "API server port",
				EnvVars: []string{"PORT", "LAWAUDIT_PORT"},
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Value:   "*",
				Usage:   "Comma-separated list of allowed CORS origins",
				EnvVars: []string{"CORS_ORIGINS"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Require this X-API-Key on /api/v1 (disabled when empty)",
				EnvVars: []string{"API_KEY"},
			},
			&cli.StringFlag{
				Name:    "store",
				Usage:   "Report store (postgres, clickhouse); none when empty",
				EnvVars: []string{"LAWAUDIT_STORE"},
			},
			&cli.BoolFlag{
				Name:    "analytics",
				Usage:   "Serve leakage analytics from ClickHouse",
				EnvVars: []string{"LAWAUDIT_ANALYTICS"},
			},
			&cli.StringFlag{
				Name:    "policy-file",
				Usage:   "Path to a YAML policy file",
				EnvVars: []string{"LAWAUDIT_POLICY_FILE"},
			},
			&cli.BoolFlag{
				Name:    "redact",
				Usage:   "Mask personal data in responses and stored runs",
				EnvVars: []string{"REDACT_PII"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	config := api.ConfigFromEnv()
	config.Port = c.Int("port")
	config.APIKey = c.String("api-key")
	config.RedactPII = c.Bool("redact")

	// Parse CORS origins
	corsOrigins := strings.Split(c.String("cors-origins"), ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	config.CORSOrigins = corsOrigins

	var opts []api.Option

	if path := c.String("policy-file"); path != "" {
		custom, err := policy.LoadFile(path)
		if err != nil {
			return auditerrors.NewPolicyInvalidError(path, err)
		}
		opts = append(opts, api.WithPolicies(custom))
	}

	kind := c.String("store")
	if kind != "" {
		store, err := openStore(c, kind)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, api.WithStore(store))

		if analytics, ok := store.(api.Analytics); ok {
			opts = append(opts, api.WithAnalytics(analytics))
		}
	}

	if c.Bool("analytics") && kind != "clickhouse" {
		analytics, err := openClickHouse(c)
		if err != nil {
			return err
		}
		defer analytics.Close()
		opts = append(opts, api.WithAnalytics(analytics))
	}

	if rc := openCache(c); rc != nil {
		defer rc.Close()
		opts = append(opts, api.WithCache(rc))
	}

	// Create and start API server
	server, err := api.NewServer(config, opts...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid server configuration: %v", err), ExitInputError)
	}

	log.Info().Str("store", kind).Bool("analytics", c.Bool("analytics")).Msg("Server configured")
	return server.StartWithGracefulShutdown()
}
