// Package remediator contains the compliance remediation handler: given one
// ComplianceEvent it decides whether remediation is required, applies the
// registered corrective operation at most once, and publishes one
// notification about the action taken.
package remediator

import (
	"context"
	"fmt"
	"time"

	"github.com/remedian/remedian/telemetry"
	"github.com/remedian/remedian/types"
)

// AuditSink records handled events for the audit trail
type AuditSink interface {
	Record(ctx context.Context, event types.ComplianceEvent, result types.RemediationResult) error
}

// Handler is the remediation handler. It holds no per-invocation state;
// concurrent Handle calls for different resources do not interact.
type Handler struct {
	registry *Registry
	notifier Notifier
	policy   ExclusionPolicy
	audit    AuditSink
	metrics  *telemetry.Provider
	logger   *telemetry.Logger
	opts     Options
}

// NewHandler creates a handler with the given remedy registry and notifier
func NewHandler(registry *Registry, notifier Notifier, opts Options) *Handler {
	return &Handler{
		registry: registry,
		notifier: notifier,
		logger:   telemetry.NewLogger("remediator"),
		opts:     opts,
	}
}

// WithNotifier replaces the notifier, for wrapping the base notifier
// with suppression or fan-out behavior
func (h *Handler) WithNotifier(notifier Notifier) *Handler {
	h.notifier = notifier
	return h
}

// WithPolicy attaches an exclusion policy
func (h *Handler) WithPolicy(policy ExclusionPolicy) *Handler {
	h.policy = policy
	return h
}

// WithAudit attaches an audit sink
func (h *Handler) WithAudit(sink AuditSink) *Handler {
	h.audit = sink
	return h
}

// WithMetrics attaches a telemetry provider
func (h *Handler) WithMetrics(provider *telemetry.Provider) *Handler {
	h.metrics = provider
	return h
}

// Handle processes one compliance event. The returned error indicates an
// invocation failure the external framework should surface; the handler
// never retries internally. Failures leave no partial state to clean up
// since the corrective call is idempotent.
func (h *Handler) Handle(ctx context.Context, event types.ComplianceEvent) (*types.RemediationResult, error) {
	result := &types.RemediationResult{
		ResourceID:   event.ResourceID,
		ResourceType: event.ResourceType,
		StartedAt:    time.Now(),
	}
	defer h.finish(ctx, event, result)

	if err := event.Validate(); err != nil {
		result.Outcome = types.OutcomeInvalid
		result.Error = err.Error()
		return result, fmt.Errorf("invalid compliance event: %w", err)
	}

	h.logger.LogEventReceived(ctx, event)

	if !event.RequiresRemediation() {
		result.Outcome = types.OutcomeNoAction
		result.Reason = fmt.Sprintf("status is %s", event.Status)
		return result, nil
	}

	if excluded, err := h.applyPolicy(ctx, event, result); excluded || err != nil {
		return result, err
	}

	remedy, ok := h.registry.Lookup(event.ResourceType)
	if !ok {
		// No remedy defined for this resource type. Returning success keeps
		// the event bus from redelivering something nobody can act on.
		result.Outcome = types.OutcomeUnsupported
		result.Reason = fmt.Sprintf("no remedy registered for %s", event.ResourceType)
		h.logger.WithContext(ctx).Warn().
			Str("resource_id", event.ResourceID).
			Str("resource_type", event.ResourceType).
			Msg("no remedy registered for resource type")
		return result, nil
	}

	if h.opts.DryRun {
		result.Outcome = types.OutcomeDryRun
		result.Action = remedy.Describe(event.ResourceID)
		return result, nil
	}

	return h.remediate(ctx, event, remedy, result)
}

// applyPolicy consults the exclusion policy, if one is attached
func (h *Handler) applyPolicy(ctx context.Context, event types.ComplianceEvent, result *types.RemediationResult) (bool, error) {
	if h.policy == nil {
		return false, nil
	}

	excluded, reason, err := h.policy.Excluded(ctx, event)
	if err != nil {
		result.Outcome = types.OutcomeFailed
		result.Error = err.Error()
		return false, fmt.Errorf("policy evaluation: %w", err)
	}
	if excluded {
		result.Outcome = types.OutcomeExcluded
		result.Reason = reason
		h.logger.WithContext(ctx).Info().
			Str("resource_id", event.ResourceID).
			Str("reason", reason).
			Msg("resource excluded from auto-remediation")
	}
	return excluded, nil
}

// remediate issues the corrective call and the notification, each at most once
func (h *Handler) remediate(ctx context.Context, event types.ComplianceEvent, remedy Remedy, result *types.RemediationResult) (*types.RemediationResult, error) {
	action, err := remedy.Apply(ctx, event.ResourceID)
	if err != nil {
		result.Outcome = types.OutcomeFailed
		result.Error = err.Error()
		h.logger.LogRemediationError(ctx, event.ResourceID, err)
		return result, fmt.Errorf("remediation of %s: %w", event.ResourceID, err)
	}
	result.Action = action

	notification := types.Notification{
		Subject:    h.subject(),
		Message:    action,
		ResourceID: event.ResourceID,
	}
	if err := h.notifier.Publish(ctx, notification); err != nil {
		// The correction stuck but the message did not go out. Surface the
		// failure; re-invocation is safe because Apply is idempotent.
		result.Outcome = types.OutcomeFailed
		result.Error = err.Error()
		h.logger.LogRemediationError(ctx, event.ResourceID, err)
		return result, fmt.Errorf("notification for %s: %w", event.ResourceID, err)
	}

	h.logger.LogNotification(ctx, notification)
	if h.metrics != nil {
		h.metrics.RecordNotification(ctx)
	}

	result.Outcome = types.OutcomeRemediated
	return result, nil
}

func (h *Handler) subject() string {
	if h.opts.Subject != "" {
		return h.opts.Subject
	}
	return defaultSubject
}

// finish stamps duration and fans the result out to logging, metrics
// and the audit trail
func (h *Handler) finish(ctx context.Context, event types.ComplianceEvent, result *types.RemediationResult) {
	result.Duration = time.Since(result.StartedAt)

	h.logger.LogRemediation(ctx, *result)
	if h.metrics != nil {
		h.metrics.RecordHandle(ctx, *result)
	}
	if h.audit != nil {
		if err := h.audit.Record(ctx, event, *result); err != nil {
			// Audit is best-effort; the invocation outcome stands.
			h.logger.WithContext(ctx).Warn().
				Err(err).
				Str("resource_id", event.ResourceID).
				Msg("audit record failed")
		}
	}
}
