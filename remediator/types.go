package remediator

import (
	"context"

	"github.com/remedian/remedian/types"
)

// Remedy applies the idempotent corrective operation for one resource type.
// Apply must be safe to repeat: correcting an already-compliant resource is
// a no-op success, not an error.
type Remedy interface {
	// ResourceType returns the AWS Config resource type this remedy covers
	ResourceType() string

	// Apply issues the corrective call and returns a human-readable
	// description of the action taken
	Apply(ctx context.Context, resourceID string) (string, error)

	// Describe returns the action description without applying anything,
	// used for dry runs
	Describe(resourceID string) string
}

// Notifier publishes a message to the notification sink. Delivery and retry
// semantics belong to the sink, not to the handler.
type Notifier interface {
	Publish(ctx context.Context, n types.Notification) error
}

// ExclusionPolicy decides whether a resource is excluded from
// auto-remediation. A nil policy excludes nothing.
type ExclusionPolicy interface {
	Excluded(ctx context.Context, event types.ComplianceEvent) (bool, string, error)
}

// Options configure handler behavior
type Options struct {
	// DryRun evaluates and logs but issues no external calls
	DryRun bool

	// Subject overrides the notification subject line
	Subject string
}

// defaultSubject is used when Options.Subject is empty
const defaultSubject = "Compliance remediation applied"
