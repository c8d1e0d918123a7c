// Package audit provides the Billing Audit Engine
// Parses invoice text, runs every compliance rule over every line and aggregates the findings
package audit

import (
	"runtime"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"lawaudit/decision/ledes"
	"lawaudit/decision/rules"
)

// Engine is the Billing Audit Engine.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	registry *rules.Registry
	schema   ledes.Schema
	workers  int
}

// Option configures an Engine
type Option func(*Engine)

// WithRegistry replaces the default rule set
func WithRegistry(r *rules.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithSchema sets the column layout used for structured input
func WithSchema(s ledes.Schema) Option {
	return func(e *Engine) { e.schema = s }
}

// WithWorkers bounds parallel rule evaluation; 1 evaluates sequentially
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine creates an engine with the default rules and LEDES 1998B schema
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		registry: rules.Default(),
		schema:   ledes.LEDES1998B,
		workers:  runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process audits raw invoice text. It never fails: malformed input yields an empty report.
func (e *Engine) Process(text string) *Report {
	return e.ProcessDocuments(text)
}

// ProcessDocuments audits several invoice files as one report.
// Each document is detected and parsed on its own, so every file keeps its header handling;
// entries are concatenated in document order. The report format is that of the first document.
func (e *Engine) ProcessDocuments(docs ...string) *Report {
	format := ledes.FormatGeneric
	entries := make([]ledes.Entry, 0)

	for i, text := range docs {
		docFormat, parsed := e.parse(text)
		if i == 0 {
			format = docFormat
		} else {
			scopeIDs(parsed, i)
		}
		entries = append(entries, parsed...)
	}

	violations := e.Evaluate(entries)
	report := Aggregate(format, entries, violations)

	log.Debug().
		Str("format", string(format)).
		Int("entries", report.Summary.TotalEntries).
		Int("violations", len(report.Violations)).
		Str("total_leakage", report.TotalLeakage.StringFixed(2)).
		Msg("Audit complete")

	return report
}

func (e *Engine) parse(text string) (ledes.Format, []ledes.Entry) {
	format := ledes.Detect(text)
	if format == ledes.FormatStructured {
		return format, ledes.ParseStructured(text, e.schema)
	}
	return format, ledes.ParseGeneric(text)
}

// scopeIDs keeps entry ids unique when two documents share an identical line at the same position
func scopeIDs(entries []ledes.Entry, doc int) {
	for i := range entries {
		ns, err := uuid.Parse(entries[i].ID)
		if err != nil {
			ns = uuid.Nil
		}
		entries[i].ID = uuid.NewSHA1(ns, []byte(strconv.Itoa(doc))).String()
	}
}

// Evaluate runs every registered rule against every entry.
// Entries are evaluated in parallel; the result is rule-major, then source order.
func (e *Engine) Evaluate(entries []ledes.Entry) []rules.Violation {
	ruleSet := e.registry.Rules()

	// slots[r][i] holds rule r's findings for entry i
	slots := make([][][]rules.Violation, len(ruleSet))
	for r := range slots {
		slots[r] = make([][]rules.Violation, len(entries))
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range entries {
		i := i
		g.Go(func() error {
			for r, rule := range ruleSet {
				slots[r][i] = rule.Evaluate(entries[i])
			}
			return nil
		})
	}
	_ = g.Wait() // rules cannot fail

	violations := make([]rules.Violation, 0)
	for r := range slots {
		for i := range slots[r] {
			violations = append(violations, slots[r][i]...)
		}
	}
	return violations
}

// Process audits text with a default engine
func Process(text string) *Report {
	return NewEngine().Process(text)
}
