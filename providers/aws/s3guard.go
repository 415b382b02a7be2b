package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/remedian/remedian/telemetry"
	"github.com/remedian/remedian/types"
)

// S3PublicAccessRemedy sets a bucket's public access block to fully
// restricted. Idempotent: a bucket that is already fully blocked is left
// untouched and reported as a no-op success.
type S3PublicAccessRemedy struct {
	client S3API
	logger *telemetry.Logger
}

// NewS3PublicAccessRemedy creates the remedy for AWS::S3::Bucket
func NewS3PublicAccessRemedy(client S3API) *S3PublicAccessRemedy {
	return &S3PublicAccessRemedy{
		client: client,
		logger: telemetry.NewLogger("s3-public-access-remedy"),
	}
}

// ResourceType implements remediator.Remedy
func (r *S3PublicAccessRemedy) ResourceType() string {
	return types.ResourceTypeS3Bucket
}

// Apply blocks all public access on the bucket
func (r *S3PublicAccessRemedy) Apply(ctx context.Context, bucket string) (string, error) {
	if r.alreadyBlocked(ctx, bucket) {
		r.logger.WithContext(ctx).Debug().
			Str("bucket", bucket).
			Msg("public access already fully blocked")
		return fmt.Sprintf("Public access already fully blocked on S3 bucket: %s", bucket), nil
	}

	_, err := r.client.PutPublicAccessBlock(ctx, &s3svc.PutPublicAccessBlockInput{
		Bucket: aws.String(bucket),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to block public access on bucket %s: %w", bucket, err)
	}

	return fmt.Sprintf("Automatically blocked public access on S3 bucket: %s", bucket), nil
}

// Describe implements remediator.Remedy
func (r *S3PublicAccessRemedy) Describe(bucket string) string {
	return fmt.Sprintf("would block all public access on S3 bucket: %s", bucket)
}

// alreadyBlocked checks the current public access block configuration.
// A missing configuration or a read error means the block must be applied;
// the PutPublicAccessBlock call is authoritative and will surface real
// permission problems.
func (r *S3PublicAccessRemedy) alreadyBlocked(ctx context.Context, bucket string) bool {
	out, err := r.client.GetPublicAccessBlock(ctx, &s3svc.GetPublicAccessBlockInput{
		Bucket: aws.String(bucket),
	})
	if err != nil || out.PublicAccessBlockConfiguration == nil {
		return false
	}
	return fullyBlocked(out.PublicAccessBlockConfiguration)
}

func fullyBlocked(cfg *s3types.PublicAccessBlockConfiguration) bool {
	return aws.ToBool(cfg.BlockPublicAcls) &&
		aws.ToBool(cfg.BlockPublicPolicy) &&
		aws.ToBool(cfg.IgnorePublicAcls) &&
		aws.ToBool(cfg.RestrictPublicBuckets)
}
