// LawAudit CLI - Legal Billing Audit Engine
//
// Usage:
//   lawaudit audit --input invoice.txt [options]
//   lawaudit audit --input s3://invoices/2024/march.csv --format json --save postgres
//   lawaudit serve --port 8080
//   lawaudit policy validate --file policies.yaml
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"lawaudit/db/clickhouse"
	auditerrors "lawaudit/pkg/errors"
	"lawaudit/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes
const (
	ExitPass        = 0
	ExitPolicyDeny  = 1
	ExitPolicyWarn  = 2
	ExitInputError  = 10
	ExitEngineError = 11
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	err := newApp(os.Stdout, os.Stderr).Run(os.Args)
	if err != nil && err.Error() != "" {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "lawaudit",
		Usage:     "Legal Billing Audit Engine - find revenue leakage in law firm invoices",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Writer:    stdout,
		ErrWriter: stderr,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LAWAUDIT_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "env",
				Value:   "development",
				Usage:   "Runtime environment; production switches logs to JSON",
				EnvVars: []string{"LAWAUDIT_ENV"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string for the report store",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "lawaudit",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the report cache (disabled when empty)",
				EnvVars: []string{"REDIS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{"REDIS_PASSWORD"},
			},
			&cli.DurationFlag{
				Name:    "cache-ttl",
				Value:   0,
				Usage:   "Report cache TTL (default 1h)",
				EnvVars: []string{"LAWAUDIT_CACHE_TTL"},
			},
		},

		Before: func(c *cli.Context) error {
			platform.InitLogger(c.String("log-level"), c.String("env") != "production")
			return nil
		},

		// exit codes are resolved by main so tests can run the app in-process
		ExitErrHandler: func(*cli.Context, error) {},

		Commands: []*cli.Command{
			auditCommand(),
			serveCommand(),
			policyCommand(),
		},
	}
}

// exitCode maps an action error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return ExitPass
	}

	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}

	switch auditerrors.Code(err) {
	case auditerrors.ErrCodeSourceUnreadable,
		auditerrors.ErrCodeUnsupportedSource,
		auditerrors.ErrCodeEmptyInput,
		auditerrors.ErrCodeInputTooLarge,
		auditerrors.ErrCodePolicyInvalid:
		return ExitInputError
	default:
		return ExitEngineError
	}
}

func clickhouseConfig(c *cli.Context) *clickhouse.Config {
	cfg := clickhouse.ConfigFromEnv()
	cfg.Host = c.String("clickhouse-host")
	cfg.Port = c.Int("clickhouse-port")
	cfg.Database = c.String("clickhouse-database")
	cfg.Username = c.String("clickhouse-user")
	cfg.Password = c.String("clickhouse-password")
	return cfg
}
