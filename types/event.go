package types

import (
	"fmt"
	"time"
)

// ComplianceStatus is the evaluation verdict reported by AWS Config
type ComplianceStatus string

const (
	StatusCompliant        ComplianceStatus = "COMPLIANT"
	StatusNonCompliant     ComplianceStatus = "NON_COMPLIANT"
	StatusNotApplicable    ComplianceStatus = "NOT_APPLICABLE"
	StatusInsufficientData ComplianceStatus = "INSUFFICIENT_DATA"
)

// Valid reports whether the status is one of the four Config verdicts
func (s ComplianceStatus) Valid() bool {
	switch s {
	case StatusCompliant, StatusNonCompliant, StatusNotApplicable, StatusInsufficientData:
		return true
	}
	return false
}

// ResourceTypeS3Bucket is the AWS Config resource type for S3 buckets
const ResourceTypeS3Bucket = "AWS::S3::Bucket"

// ComplianceEvent is one compliance-state change for one resource.
// Created by the external evaluator, consumed exactly once per invocation,
// never persisted by the handler.
type ComplianceEvent struct {
	ResourceID   string           `json:"resource_id"`
	ResourceType string           `json:"resource_type"`
	Status       ComplianceStatus `json:"status"`
	RuleName     string           `json:"rule_name,omitempty"`
	Region       string           `json:"region,omitempty"`
	AccountID    string           `json:"account_id,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at,omitempty"`
}

// Validate ensures the event carries the two fields remediation needs
func (e *ComplianceEvent) Validate() error {
	if e.ResourceID == "" {
		return fmt.Errorf("compliance event resource ID cannot be empty")
	}
	if !e.Status.Valid() {
		return fmt.Errorf("unrecognized compliance status %q", e.Status)
	}
	return nil
}

// RequiresRemediation reports whether the event calls for a corrective action
func (e *ComplianceEvent) RequiresRemediation() bool {
	return e.Status == StatusNonCompliant
}
