// Package policy evaluates Rego exclusion policies against compliance
// events. Policies can exempt resources from auto-remediation, e.g. buckets
// that are public on purpose. With no policies loaded every resource is
// remediable.
package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/remedian/remedian/telemetry"
	"github.com/remedian/remedian/types"
)

// Input is the document policies evaluate against
type Input struct {
	ResourceID   string    `json:"resource_id"`
	ResourceType string    `json:"resource_type"`
	Status       string    `json:"status"`
	Rule         string    `json:"rule"`
	Region       string    `json:"region"`
	Account      string    `json:"account"`
	Timestamp    time.Time `json:"timestamp"`
}

// Engine evaluates loaded Rego policies. Policies publish to the
// data.remedian namespace; an `exclude` rule that evaluates true exempts
// the resource, and an optional `reason` string explains why.
type Engine struct {
	logger  *telemetry.Logger
	tracer  trace.Tracer
	queries map[string]rego.PreparedEvalQuery
}

// NewEngine creates an engine with no policies loaded
func NewEngine() *Engine {
	return &Engine{
		logger:  telemetry.NewLogger("policy-engine"),
		tracer:  otel.Tracer("policy-engine"),
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// LoadPolicy compiles a Rego policy from source
func (e *Engine) LoadPolicy(ctx context.Context, name string, regoCode string) error {
	query := rego.New(
		rego.Query("data.remedian"),
		rego.Module(name, regoCode),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to compile policy %s: %w", name, err)
	}

	e.queries[name] = prepared

	e.logger.WithContext(ctx).Info().
		Str("policy_name", name).
		Msg("policy loaded")

	return nil
}

// LoadPolicyFiles compiles Rego policies from disk
func (e *Engine) LoadPolicyFiles(ctx context.Context, paths ...string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path) // #nosec G304 -- paths come from operator config
		if err != nil {
			return fmt.Errorf("failed to read policy %s: %w", path, err)
		}
		if err := e.LoadPolicy(ctx, filepath.Base(path), string(data)); err != nil {
			return err
		}
	}
	return nil
}

// PolicyCount returns the number of loaded policies
func (e *Engine) PolicyCount() int {
	return len(e.queries)
}

// Excluded reports whether any loaded policy exempts the resource from
// auto-remediation. Implements remediator.ExclusionPolicy.
func (e *Engine) Excluded(ctx context.Context, event types.ComplianceEvent) (bool, string, error) {
	if len(e.queries) == 0 {
		return false, "", nil
	}

	ctx, span := e.tracer.Start(ctx, "policy_engine.excluded",
		trace.WithAttributes(
			attribute.String("resource.id", event.ResourceID),
			attribute.String("resource.type", event.ResourceType)))
	defer span.End()

	input := Input{
		ResourceID:   event.ResourceID,
		ResourceType: event.ResourceType,
		Status:       string(event.Status),
		Rule:         event.RuleName,
		Region:       event.Region,
		Account:      event.AccountID,
		Timestamp:    time.Now(),
	}

	for name, query := range e.queries {
		excluded, reason, err := e.evaluatePolicy(ctx, name, query, input)
		if err != nil {
			return false, "", fmt.Errorf("policy %s: %w", name, err)
		}
		if excluded {
			if reason == "" {
				reason = fmt.Sprintf("excluded by policy %s", name)
			}
			return true, reason, nil
		}
	}

	return false, "", nil
}

func (e *Engine) evaluatePolicy(ctx context.Context, name string, query rego.PreparedEvalQuery, input Input) (bool, string, error) {
	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, "", fmt.Errorf("evaluation failed: %w", err)
	}

	for _, result := range results {
		for _, expr := range result.Expressions {
			doc, ok := expr.Value.(map[string]interface{})
			if !ok {
				continue
			}
			if excluded, _ := doc["exclude"].(bool); excluded {
				reason, _ := doc["reason"].(string)
				return true, reason, nil
			}
		}
	}

	return false, "", nil
}
