package types

import "time"

// Outcome classifies what the handler did with an event
type Outcome string

const (
	OutcomeRemediated  Outcome = "remediated"  // Corrective call issued, notification published
	OutcomeNoAction    Outcome = "no_action"   // Status was not NON_COMPLIANT
	OutcomeExcluded    Outcome = "excluded"    // Policy excluded the resource from auto-remediation
	OutcomeUnsupported Outcome = "unsupported" // No remedy registered for the resource type
	OutcomeDryRun      Outcome = "dry_run"     // Would have remediated, dry-run enabled
	OutcomeFailed      Outcome = "failed"      // Corrective call or notification failed
	OutcomeInvalid     Outcome = "invalid"     // Malformed event, nothing attempted
)

// Terminal reports whether the outcome means no further delivery should retry it
func (o Outcome) Terminal() bool {
	return o != OutcomeFailed
}

// RemediationResult is the per-invocation outcome returned to the caller
type RemediationResult struct {
	ResourceID   string        `json:"resource_id"`
	ResourceType string        `json:"resource_type,omitempty"`
	Outcome      Outcome       `json:"outcome"`
	Action       string        `json:"action,omitempty"` // Human-readable description of the correction
	Reason       string        `json:"reason,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
}

// Succeeded reports whether the invocation should be surfaced as a success
func (r *RemediationResult) Succeeded() bool {
	return r.Outcome != OutcomeFailed && r.Outcome != OutcomeInvalid
}

// Notification is the message published to the notification sink
// after a successful correction
type Notification struct {
	Subject    string `json:"subject"`
	Message    string `json:"message"`
	ResourceID string `json:"resource_id"`
}
