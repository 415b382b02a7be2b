// Package aws provides the AWS-backed implementations of the remediation
// collaborators: the S3 public-access remedy, the SNS notifier, the SQS
// message source and the account sweeper.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	snssvc "github.com/aws/aws-sdk-go-v2/service/sns"
	sqssvc "github.com/aws/aws-sdk-go-v2/service/sqs"
	stssvc "github.com/aws/aws-sdk-go-v2/service/sts"
)

// S3API is the narrow S3 interface the remedy and the sweeper use.
// Tests substitute fakes implementing it.
type S3API interface {
	ListBuckets(ctx context.Context, params *s3svc.ListBucketsInput, optFns ...func(*s3svc.Options)) (*s3svc.ListBucketsOutput, error)
	GetPublicAccessBlock(ctx context.Context, params *s3svc.GetPublicAccessBlockInput, optFns ...func(*s3svc.Options)) (*s3svc.GetPublicAccessBlockOutput, error)
	PutPublicAccessBlock(ctx context.Context, params *s3svc.PutPublicAccessBlockInput, optFns ...func(*s3svc.Options)) (*s3svc.PutPublicAccessBlockOutput, error)
	GetBucketPolicyStatus(ctx context.Context, params *s3svc.GetBucketPolicyStatusInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyStatusOutput, error)
}

// SNSAPI is the narrow SNS interface the notifier uses
type SNSAPI interface {
	Publish(ctx context.Context, params *snssvc.PublishInput, optFns ...func(*snssvc.Options)) (*snssvc.PublishOutput, error)
}

// SQSAPI is the narrow SQS interface the worker uses
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqssvc.ReceiveMessageInput, optFns ...func(*sqssvc.Options)) (*sqssvc.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqssvc.DeleteMessageInput, optFns ...func(*sqssvc.Options)) (*sqssvc.DeleteMessageOutput, error)
}

// STSAPI is the narrow STS interface for account identity
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *stssvc.GetCallerIdentityInput, optFns ...func(*stssvc.Options)) (*stssvc.GetCallerIdentityOutput, error)
}

// Clients bundles the AWS service clients Remedian uses
type Clients struct {
	S3  S3API
	SNS SNSAPI
	SQS SQSAPI
	STS STSAPI
}

// NewClients creates production SDK clients from an AWS config
func NewClients(cfg aws.Config) *Clients {
	return &Clients{
		S3:  s3svc.NewFromConfig(cfg),
		SNS: snssvc.NewFromConfig(cfg),
		SQS: sqssvc.NewFromConfig(cfg),
		STS: stssvc.NewFromConfig(cfg),
	}
}

// LoadClients resolves default credentials for the region and builds
// the client bundle
func LoadClients(ctx context.Context, region string) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
		awsconfig.WithRetryMaxAttempts(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewClients(cfg), nil
}

// ResolveAccountID returns the account ID of the active credentials
func ResolveAccountID(ctx context.Context, client STSAPI) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &stssvc.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to resolve caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}
