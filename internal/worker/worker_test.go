package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	sqssvc "github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedian/remedian/types"
)

// fakeSQS serves queued batches and records deletions
type fakeSQS struct {
	batches    [][]sqstypes.Message
	receiveErr error
	deleted    []string
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, _ *sqssvc.ReceiveMessageInput, _ ...func(*sqssvc.Options)) (*sqssvc.ReceiveMessageOutput, error) {
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	if len(f.batches) == 0 {
		return &sqssvc.ReceiveMessageOutput{}, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return &sqssvc.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, params *sqssvc.DeleteMessageInput, _ ...func(*sqssvc.Options)) (*sqssvc.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, awssdk.ToString(params.ReceiptHandle))
	return &sqssvc.DeleteMessageOutput{}, nil
}

// fakeHandler records handled events and fails for listed resources
type fakeHandler struct {
	handled []types.ComplianceEvent
	failFor map[string]bool
}

func (f *fakeHandler) Handle(_ context.Context, event types.ComplianceEvent) (*types.RemediationResult, error) {
	f.handled = append(f.handled, event)
	if f.failFor[event.ResourceID] {
		return &types.RemediationResult{ResourceID: event.ResourceID, Outcome: types.OutcomeFailed},
			fmt.Errorf("remediation of %s: AccessDenied", event.ResourceID)
	}
	return &types.RemediationResult{ResourceID: event.ResourceID, Outcome: types.OutcomeRemediated}, nil
}

func message(handle, body string) sqstypes.Message {
	return sqstypes.Message{
		MessageId:     awssdk.String("msg-" + handle),
		ReceiptHandle: awssdk.String(handle),
		Body:          awssdk.String(body),
	}
}

func TestWorker_HandleAndDelete(t *testing.T) {
	client := &fakeSQS{batches: [][]sqstypes.Message{{
		message("r1", `{"resourceId": "bucket-A", "complianceStatus": "NON_COMPLIANT"}`),
	}}}
	handler := &fakeHandler{}
	w := New(client, "https://sqs.test/queue", handler, Options{})

	require.NoError(t, w.poll(context.Background()))

	require.Len(t, handler.handled, 1)
	assert.Equal(t, "bucket-A", handler.handled[0].ResourceID)
	assert.Equal(t, []string{"r1"}, client.deleted)
}

func TestWorker_MalformedMessageDeleted(t *testing.T) {
	client := &fakeSQS{batches: [][]sqstypes.Message{{
		message("r1", `{"complianceStatus": "NON_COMPLIANT"}`), // no resource ID
		message("r2", `not json at all`),
	}}}
	handler := &fakeHandler{}
	w := New(client, "https://sqs.test/queue", handler, Options{})

	require.NoError(t, w.poll(context.Background()))

	assert.Empty(t, handler.handled, "malformed messages must not reach the handler")
	assert.Equal(t, []string{"r1", "r2"}, client.deleted, "poison pills are dropped")
}

func TestWorker_FailedHandlerLeavesMessage(t *testing.T) {
	client := &fakeSQS{batches: [][]sqstypes.Message{{
		message("r1", `{"resourceId": "bucket-A", "complianceStatus": "NON_COMPLIANT"}`),
		message("r2", `{"resourceId": "bucket-B", "complianceStatus": "NON_COMPLIANT"}`),
	}}}
	handler := &fakeHandler{failFor: map[string]bool{"bucket-A": true}}
	w := New(client, "https://sqs.test/queue", handler, Options{})

	require.NoError(t, w.poll(context.Background()))

	require.Len(t, handler.handled, 2)
	assert.Equal(t, []string{"r2"}, client.deleted, "failed message stays in flight for redelivery")
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	client := &fakeSQS{}
	w := New(client, "https://sqs.test/queue", &fakeHandler{}, Options{WaitTime: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorker_OptionDefaults(t *testing.T) {
	w := New(&fakeSQS{}, "https://sqs.test/queue", &fakeHandler{}, Options{WaitTime: 45, MaxMessages: -1})
	assert.Equal(t, int32(20), w.opts.WaitTime)
	assert.Equal(t, int32(10), w.opts.MaxMessages)
}
