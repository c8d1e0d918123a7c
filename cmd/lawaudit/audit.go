package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"lawaudit/db/ingestion"
	"lawaudit/decision/audit"
	"lawaudit/decision/policy"
	auditerrors "lawaudit/pkg/errors"
	"lawaudit/pkg/redact"
	"lawaudit/pkg/source"
)

// =============================================================================
// AUDIT COMMAND
// =============================================================================

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Audit an invoice for billing leakage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Invoice location: path, -, file://, http(s)://, s3://bucket/key or gs://bucket/object",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json, markdown)",
			},
			&cli.BoolFlag{
				Name:  "redact",
				Value: false,
				Usage: "Mask SSNs, phone numbers, dates and personnel names in the output",
			},
			&cli.StringSliceFlag{
				Name:  "redact-name",
				Usage: "Additional personnel name to mask (repeatable)",
			},
			&cli.StringFlag{
				Name:  "policy-file",
				Usage: "Path to a YAML policy file",
			},
			&cli.Float64Flag{
				Name:  "leakage-limit",
				Usage: "Deny when identified leakage exceeds this amount",
			},
			&cli.Float64Flag{
				Name:  "leakage-ratio",
				Usage: "Deny when leakage exceeds this percentage of the billed total",
			},
			&cli.BoolFlag{
				Name:  "skip-policy",
				Value: false,
				Usage: "Skip policy evaluation",
			},
			&cli.StringFlag{
				Name:  "save",
				Usage: "Persist the report (postgres, clickhouse)",
			},
			&cli.Int64Flag{
				Name:  "max-bytes",
				Value: source.DefaultMaxBytes,
				Usage: "Maximum invoice size in bytes",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel rule workers (default GOMAXPROCS)",
			},
		},
		Action: runAudit,
	}
}

func runAudit(c *cli.Context) error {
	ctx := c.Context

	format := c.String("format")
	switch format {
	case "table", "json", "markdown":
	default:
		return cli.Exit(fmt.Sprintf("unknown output format %q", format), ExitInputError)
	}

	custom, err := cliPolicies(c)
	if err != nil {
		return err
	}

	doc, err := source.Load(ctx, c.String("input"), c.Int64("max-bytes"))
	if err != nil {
		return err
	}

	engine := audit.NewEngine(audit.WithWorkers(c.Int("workers")))
	report := engine.Process(doc.Text)

	log.Info().
		Str("source", doc.URI).
		Str("format", string(report.Format)).
		Int("entries", report.Summary.TotalEntries).
		Int("violations", len(report.Violations)).
		Msg("Audit complete")

	if c.Bool("redact") {
		names := append(append([]string{}, redact.DefaultPersonnel...), c.StringSlice("redact-name")...)
		report = redact.New(names...).Report(report)
	}

	// Run policy evaluation
	var policyResult *policy.EvaluationResult
	if !c.Bool("skip-policy") {
		policyEngine, err := policy.NewEngine()
		if err != nil {
			return fmt.Errorf("failed to create policy engine: %w", err)
		}
		if err := policyEngine.ValidateAll(custom); err != nil {
			return auditerrors.NewPolicyInvalidError(c.String("policy-file"), err)
		}

		policyResult, err = policyEngine.Evaluate(ctx, report, custom...)
		if err != nil {
			return fmt.Errorf("policy evaluation failed: %w", err)
		}
	}

	var recordID string
	if kind := c.String("save"); kind != "" {
		store, err := openStore(c, kind)
		if err != nil {
			return err
		}
		defer store.Close()

		decision := ""
		if policyResult != nil {
			decision = string(policyResult.Decision)
		}
		res, err := ingestion.NewRecorder(store, nil).Record(ctx, &ingestion.Input{
			Source:   doc.URI,
			Text:     doc.Text,
			Report:   report,
			Decision: decision,
		})
		if err != nil {
			return auditerrors.NewStoreError("save", err)
		}
		recordID = res.RecordID.String()
		log.Info().Str("record_id", recordID).Str("store", kind).Msg("Report saved")
	}

	out := &auditOutput{Source: doc.URI, Report: report, Policy: policyResult, RecordID: recordID}

	// Output results
	switch format {
	case "json":
		err = outputJSON(c.App.Writer, out)
	case "markdown":
		err = outputMarkdown(c.App.Writer, out)
	default:
		err = outputTable(c.App.Writer, out)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return decisionExit(policyResult)
}

// cliPolicies collects policies from --policy-file and the threshold flags
func cliPolicies(c *cli.Context) ([]policy.Policy, error) {
	var custom []policy.Policy

	if path := c.String("policy-file"); path != "" {
		loaded, err := policy.LoadFile(path)
		if err != nil {
			return nil, auditerrors.NewPolicyInvalidError(path, err)
		}
		custom = append(custom, loaded...)
	}

	// Add custom policies from flags
	if limit := c.Float64("leakage-limit"); limit > 0 {
		custom = append(custom, policy.Policy{
			ID:        "cli-leakage-limit",
			Name:      "Leakage Limit",
			Type:      policy.PolicyTypeLeakageLimit,
			Severity:  policy.SeverityError,
			Threshold: limit,
			Enabled:   true,
		})
	}

	if ratio := c.Float64("leakage-ratio"); ratio > 0 {
		custom = append(custom, policy.Policy{
			ID:        "cli-leakage-ratio",
			Name:      "Leakage Ratio",
			Type:      policy.PolicyTypeLeakageRatio,
			Severity:  policy.SeverityError,
			Threshold: ratio,
			Enabled:   true,
		})
	}

	return custom, nil
}

// decisionExit turns a deny or warn decision into the matching exit code
func decisionExit(result *policy.EvaluationResult) error {
	if result == nil {
		return nil
	}
	switch result.Decision {
	case policy.DecisionDeny:
		return cli.Exit("", ExitPolicyDeny)
	case policy.DecisionWarn:
		return cli.Exit("", ExitPolicyWarn)
	}
	return nil
}
