package envelope

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedian/remedian/types"
)

const complianceNotification = `{
	"messageType": "ComplianceChangeNotification",
	"resourceId": "bucket-A",
	"resourceType": "AWS::S3::Bucket",
	"configRuleName": "s3-bucket-public-read-prohibited",
	"awsRegion": "us-east-1",
	"awsAccountId": "123456789012",
	"newEvaluationResult": {
		"complianceType": "NON_COMPLIANT",
		"resultRecordedTime": "2024-03-01T12:00:00Z"
	}
}`

func TestDecode_ConfigNotification(t *testing.T) {
	event, err := Decode(json.RawMessage(complianceNotification))
	require.NoError(t, err)

	assert.Equal(t, "bucket-A", event.ResourceID)
	assert.Equal(t, types.ResourceTypeS3Bucket, event.ResourceType)
	assert.Equal(t, types.StatusNonCompliant, event.Status)
	assert.Equal(t, "s3-bucket-public-read-prohibited", event.RuleName)
	assert.Equal(t, "us-east-1", event.Region)
	assert.Equal(t, "123456789012", event.AccountID)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestDecode_EventBridge(t *testing.T) {
	raw := `{
		"version": "0",
		"detail-type": "Config Rules Compliance Change",
		"source": "aws.config",
		"account": "123456789012",
		"region": "eu-west-1",
		"time": "2024-03-01T12:00:00Z",
		"detail": {
			"resourceId": "bucket-A",
			"resourceType": "AWS::S3::Bucket",
			"configRuleName": "s3-bucket-public-read-prohibited",
			"newEvaluationResult": {"complianceType": "NON_COMPLIANT"}
		}
	}`

	event, err := Decode(json.RawMessage(raw))
	require.NoError(t, err)

	assert.Equal(t, "bucket-A", event.ResourceID)
	assert.Equal(t, types.StatusNonCompliant, event.Status)
	// Region and account come from the outer event when the detail omits them
	assert.Equal(t, "eu-west-1", event.Region)
	assert.Equal(t, "123456789012", event.AccountID)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestDecode_EventBridge_WrongDetailType(t *testing.T) {
	raw := `{
		"detail-type": "EC2 Instance State-change Notification",
		"detail": {"instance-id": "i-123"}
	}`

	_, err := Decode(json.RawMessage(raw))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestDecode_SNSEnvelope(t *testing.T) {
	wrapped := `{
		"Type": "Notification",
		"TopicArn": "arn:aws:sns:us-east-1:123456789012:config-topic",
		"Message": ` + strconv.Quote(complianceNotification) + `
	}`

	event, err := Decode(json.RawMessage(wrapped))
	require.NoError(t, err)
	assert.Equal(t, "bucket-A", event.ResourceID)
	assert.Equal(t, types.StatusNonCompliant, event.Status)
}

func TestDecode_Bare(t *testing.T) {
	raw := `{"resourceId": "bucket-B", "complianceStatus": "COMPLIANT"}`

	event, err := Decode(json.RawMessage(raw))
	require.NoError(t, err)
	assert.Equal(t, "bucket-B", event.ResourceID)
	assert.Equal(t, types.StatusCompliant, event.Status)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "not even json"},
		{"empty object", "{}"},
		{"missing resource id", `{"complianceStatus": "NON_COMPLIANT"}`},
		{"unknown status", `{"resourceId": "bucket-A", "complianceStatus": "MAYBE"}`},
		{"notification without message", `{"Type": "Notification"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "want ErrMalformed, got %v", err)
		})
	}
}

func TestDecode_NestingBound(t *testing.T) {
	// Each layer wraps the previous in another SNS envelope
	payload := complianceNotification
	for i := 0; i < maxNesting+1; i++ {
		payload = `{"Type": "Notification", "Message": ` + strconv.Quote(payload) + `}`
	}

	_, err := Decode(json.RawMessage(payload))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestDecodeSNSEvent(t *testing.T) {
	e := events.SNSEvent{
		Records: []events.SNSEventRecord{
			{SNS: events.SNSEntity{Message: complianceNotification}},
		},
	}

	event, err := DecodeSNSEvent(e)
	require.NoError(t, err)
	assert.Equal(t, "bucket-A", event.ResourceID)
	assert.Equal(t, types.StatusNonCompliant, event.Status)
}

func TestDecodeSNSEvent_Empty(t *testing.T) {
	_, err := DecodeSNSEvent(events.SNSEvent{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestDecode_LambdaRecordsShape(t *testing.T) {
	raw := `{"Records": [{"EventSource": "aws:sns", "Sns": {"Message": ` + strconv.Quote(complianceNotification) + `}}]}`

	event, err := Decode(json.RawMessage(raw))
	require.NoError(t, err)
	assert.Equal(t, "bucket-A", event.ResourceID)
}
