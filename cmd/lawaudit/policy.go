package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"lawaudit/decision/policy"
	auditerrors "lawaudit/pkg/errors"
)

// =============================================================================
// POLICY COMMAND
// =============================================================================

func policyCommand() *cli.Command {
	return &cli.Command{
		Name:  "policy",
		Usage: "Manage recovery policies",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List built-in policies and those in an optional policy file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "Path to a YAML policy file",
					},
				},
				Action: runPolicyList,
			},
			{
				Name:  "validate",
				Usage: "Validate a policy file, compiling every expression",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Usage:    "Path to a YAML policy file",
						Required: true,
					},
				},
				Action: runPolicyValidate,
			},
		},
	}
}

func runPolicyList(c *cli.Context) error {
	engine, err := policy.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to create policy engine: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintln(w, "Built-in Policies:")
	for _, p := range engine.Policies() {
		fmt.Fprintf(w, "  - %s (%s, %s): %s\n", p.ID, p.Type, p.Severity, p.Description)
	}

	path := c.String("file")
	if path == "" {
		return nil
	}
	custom, err := policy.LoadFile(path)
	if err != nil {
		return auditerrors.NewPolicyInvalidError(path, err)
	}

	fmt.Fprintf(w, "\nPolicies in %s:\n", path)
	for _, p := range custom {
		state := ""
		if !p.Enabled {
			state = " [disabled]"
		}
		fmt.Fprintf(w, "  - %s (%s, %s)%s: %s\n", p.ID, p.Type, p.Severity, state, p.Name)
	}
	return nil
}

func runPolicyValidate(c *cli.Context) error {
	path := c.String("file")
	custom, err := policy.LoadFile(path)
	if err != nil {
		return auditerrors.NewPolicyInvalidError(path, err)
	}

	engine, err := policy.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to create policy engine: %w", err)
	}
	if err := engine.ValidateAll(custom); err != nil {
		return auditerrors.NewPolicyInvalidError(path, err)
	}

	fmt.Fprintf(c.App.Writer, "✅ %s: %d policies valid\n", path, len(custom))
	return nil
}
