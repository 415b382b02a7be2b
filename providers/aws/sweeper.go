package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/remedian/remedian/telemetry"
	"github.com/remedian/remedian/types"
)

// sweepRuleName marks events synthesized by the sweeper rather than
// delivered by AWS Config
const sweepRuleName = "s3-public-access-sweep"

// Sweeper evaluates every bucket in the account directly, without waiting
// for AWS Config, and synthesizes compliance events for the handler.
type Sweeper struct {
	client    S3API
	region    string
	accountID string
	logger    *telemetry.Logger
}

// NewSweeper creates a bucket sweeper
func NewSweeper(client S3API, region, accountID string) *Sweeper {
	return &Sweeper{
		client:    client,
		region:    region,
		accountID: accountID,
		logger:    telemetry.NewLogger("sweeper"),
	}
}

// Sweep lists all buckets and returns one compliance event per bucket.
// Exposed buckets (public access not fully blocked, or a public bucket
// policy) come back NON_COMPLIANT; the rest COMPLIANT.
func (s *Sweeper) Sweep(ctx context.Context) ([]types.ComplianceEvent, error) {
	out, err := s.client.ListBuckets(ctx, &s3svc.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	events := make([]types.ComplianceEvent, 0, len(out.Buckets))
	for _, bucket := range out.Buckets {
		name := aws.ToString(bucket.Name)
		if name == "" {
			continue
		}
		events = append(events, s.evaluateBucket(ctx, name))
	}
	return events, nil
}

func (s *Sweeper) evaluateBucket(ctx context.Context, name string) types.ComplianceEvent {
	status := types.StatusCompliant
	if !s.accessBlocked(ctx, name) || s.policyPublic(ctx, name) {
		status = types.StatusNonCompliant
	}

	return types.ComplianceEvent{
		ResourceID:   name,
		ResourceType: types.ResourceTypeS3Bucket,
		Status:       status,
		RuleName:     sweepRuleName,
		Region:       s.region,
		AccountID:    s.accountID,
		OccurredAt:   time.Now(),
	}
}

// accessBlocked reports whether the bucket's public access block has all
// four restrictions enabled. A missing configuration counts as not blocked.
func (s *Sweeper) accessBlocked(ctx context.Context, name string) bool {
	out, err := s.client.GetPublicAccessBlock(ctx, &s3svc.GetPublicAccessBlockInput{
		Bucket: aws.String(name),
	})
	if err != nil || out.PublicAccessBlockConfiguration == nil {
		return false
	}
	return fullyBlocked(out.PublicAccessBlockConfiguration)
}

// policyPublic reports whether the bucket policy is evaluated as public.
// Buckets without a policy return an error here, which is treated as not
// public to avoid false positives.
func (s *Sweeper) policyPublic(ctx context.Context, name string) bool {
	out, err := s.client.GetBucketPolicyStatus(ctx, &s3svc.GetBucketPolicyStatusInput{
		Bucket: aws.String(name),
	})
	if err != nil || out.PolicyStatus == nil {
		return false
	}
	return aws.ToBool(out.PolicyStatus.IsPublic)
}
