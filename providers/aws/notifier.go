package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	snssvc "github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/remedian/remedian/types"
)

// SNSNotifier publishes remediation notifications to a pre-existing SNS
// topic. Delivery and subscriber retry semantics belong to SNS.
type SNSNotifier struct {
	client   SNSAPI
	topicARN string
}

// NewSNSNotifier creates a notifier for the given topic
func NewSNSNotifier(client SNSAPI, topicARN string) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN}
}

// Publish implements remediator.Notifier
func (n *SNSNotifier) Publish(ctx context.Context, notification types.Notification) error {
	input := &snssvc.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(notification.Message),
	}
	if notification.Subject != "" {
		input.Subject = aws.String(notification.Subject)
	}

	if _, err := n.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.topicARN, err)
	}
	return nil
}
