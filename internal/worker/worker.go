// Package worker consumes compliance notifications from an SQS queue
// subscribed to the AWS Config topic and feeds them to the remediation
// handler. Redelivery of failed messages is the queue's job; the worker
// never retries a handler call itself.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	sqssvc "github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/remedian/remedian/envelope"
	"github.com/remedian/remedian/providers/aws"
	"github.com/remedian/remedian/telemetry"
	"github.com/remedian/remedian/types"
)

// Handler processes one decoded compliance event. Satisfied by
// *remediator.Handler.
type Handler interface {
	Handle(ctx context.Context, event types.ComplianceEvent) (*types.RemediationResult, error)
}

// Options tune the receive loop
type Options struct {
	WaitTime    int32 // Long-poll seconds, 0..20
	MaxMessages int32 // Batch size per receive, 1..10
}

// Worker drains one queue
type Worker struct {
	client   aws.SQSAPI
	queueURL string
	handler  Handler
	logger   *telemetry.Logger
	opts     Options
}

// New creates a worker for the given queue
func New(client aws.SQSAPI, queueURL string, handler Handler, opts Options) *Worker {
	if opts.WaitTime <= 0 || opts.WaitTime > 20 {
		opts.WaitTime = 20
	}
	if opts.MaxMessages <= 0 || opts.MaxMessages > 10 {
		opts.MaxMessages = 10
	}
	return &Worker{
		client:   client,
		queueURL: queueURL,
		handler:  handler,
		logger:   telemetry.NewLogger("worker"),
		opts:     opts,
	}
}

// Run receives and processes messages until the context is canceled
func (w *Worker) Run(ctx context.Context) error {
	w.logger.WithContext(ctx).Info().
		Str("queue_url", w.queueURL).
		Msg("worker starting")

	for {
		select {
		case <-ctx.Done():
			w.logger.WithContext(ctx).Info().Msg("worker stopping")
			return ctx.Err()
		default:
		}

		if err := w.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.WithContext(ctx).Error().
				Err(err).
				Msg("receive failed, backing off")
			sleepCtx(ctx, 5*time.Second)
		}
	}
}

// poll performs one receive and processes the batch
func (w *Worker) poll(ctx context.Context) error {
	out, err := w.client.ReceiveMessage(ctx, &sqssvc.ReceiveMessageInput{
		QueueUrl:            awssdk.String(w.queueURL),
		MaxNumberOfMessages: w.opts.MaxMessages,
		WaitTimeSeconds:     w.opts.WaitTime,
	})
	if err != nil {
		return fmt.Errorf("receive from %s: %w", w.queueURL, err)
	}

	for _, msg := range out.Messages {
		w.processMessage(ctx, msg)
	}
	return nil
}

// processMessage decodes and handles one message. Successfully handled and
// malformed messages are deleted; transient handler failures leave the
// message in flight so the queue redelivers it.
func (w *Worker) processMessage(ctx context.Context, msg sqstypes.Message) {
	body := awssdk.ToString(msg.Body)

	event, err := envelope.Decode(json.RawMessage(body))
	if err != nil {
		// Every decode failure is malformed input, a poison pill
		// redelivery cannot fix; drop it
		w.logger.WithContext(ctx).Warn().
			Err(err).
			Str("message_id", awssdk.ToString(msg.MessageId)).
			Msg("dropping malformed message")
		w.deleteMessage(ctx, msg)
		return
	}

	if _, err := w.handler.Handle(ctx, event); err != nil {
		w.logger.WithContext(ctx).Error().
			Err(err).
			Str("resource_id", event.ResourceID).
			Msg("handler failed, leaving message for redelivery")
		return
	}

	w.deleteMessage(ctx, msg)
}

func (w *Worker) deleteMessage(ctx context.Context, msg sqstypes.Message) {
	_, err := w.client.DeleteMessage(ctx, &sqssvc.DeleteMessageInput{
		QueueUrl:      awssdk.String(w.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		// The message will be redelivered and handled again; harmless
		// because the corrective call is idempotent
		w.logger.WithContext(ctx).Warn().
			Err(err).
			Str("message_id", awssdk.ToString(msg.MessageId)).
			Msg("delete failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
