// Package envelope extracts ComplianceEvents from the wire formats the
// event router can deliver: EventBridge compliance-change events, AWS Config
// SNS notifications (message-in-message), SNS envelopes as seen by SQS
// subscribers, and bare JSON payloads. Remediation logic never sees any of
// these shapes, only the decoded event.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/remedian/remedian/types"
)

// ErrMalformed indicates a payload that carries no decodable compliance event
var ErrMalformed = errors.New("malformed compliance payload")

// detailTypeComplianceChange is the EventBridge detail-type emitted by AWS Config
const detailTypeComplianceChange = "Config Rules Compliance Change"

// maxNesting bounds message-in-message recursion
const maxNesting = 4

// probe is a superset of every envelope shape we accept
type probe struct {
	// EventBridge event
	DetailType string          `json:"detail-type"`
	Detail     json.RawMessage `json:"detail"`
	Account    string          `json:"account"`
	Region     string          `json:"region"`
	Time       time.Time       `json:"time"`

	// SNS envelope as delivered to SQS subscribers
	Type    string `json:"Type"`
	Message string `json:"Message"`

	// Lambda SNS trigger
	Records []json.RawMessage `json:"Records"`

	// AWS Config compliance notification fields
	MessageType         string      `json:"messageType"`
	ResourceID          string      `json:"resourceId"`
	ResourceType        string      `json:"resourceType"`
	ConfigRuleName      string      `json:"configRuleName"`
	AWSRegion           string      `json:"awsRegion"`
	AWSAccountID        string      `json:"awsAccountId"`
	NewEvaluationResult *evalResult `json:"newEvaluationResult"`

	// Bare payload used by manual invocations and tests
	ComplianceStatus string `json:"complianceStatus"`
}

type evalResult struct {
	ComplianceType     string    `json:"complianceType"`
	ResultRecordedTime time.Time `json:"resultRecordedTime"`
}

// Decode extracts a ComplianceEvent from a raw invocation payload.
// The returned event is validated; a nil error means both required
// fields were present and recognized.
func Decode(raw json.RawMessage) (types.ComplianceEvent, error) {
	return decode(raw, 0)
}

// DecodeSNSEvent extracts a ComplianceEvent from a Lambda SNS trigger.
// Only the first record is consumed; Config publishes one notification
// per message.
func DecodeSNSEvent(e events.SNSEvent) (types.ComplianceEvent, error) {
	if len(e.Records) == 0 {
		return types.ComplianceEvent{}, fmt.Errorf("%w: SNS event has no records", ErrMalformed)
	}
	return decode(json.RawMessage(e.Records[0].SNS.Message), 1)
}

func decode(raw json.RawMessage, depth int) (types.ComplianceEvent, error) {
	if depth > maxNesting {
		return types.ComplianceEvent{}, fmt.Errorf("%w: envelope nesting too deep", ErrMalformed)
	}

	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return types.ComplianceEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch {
	case len(p.Records) > 0:
		return decodeRecords(raw, depth)
	case p.Type == "Notification" && p.Message != "":
		return decode(json.RawMessage(p.Message), depth+1)
	case len(p.Detail) > 0:
		return decodeEventBridge(p, depth)
	default:
		return buildEvent(p)
	}
}

// decodeRecords handles the Lambda SNS trigger shape
func decodeRecords(raw json.RawMessage, depth int) (types.ComplianceEvent, error) {
	var snsEvent events.SNSEvent
	if err := json.Unmarshal(raw, &snsEvent); err != nil || len(snsEvent.Records) == 0 {
		return types.ComplianceEvent{}, fmt.Errorf("%w: unrecognized records payload", ErrMalformed)
	}
	return decode(json.RawMessage(snsEvent.Records[0].SNS.Message), depth+1)
}

// decodeEventBridge handles the EventBridge compliance-change shape,
// stamping region/account/time from the outer event when the detail
// omits them
func decodeEventBridge(outer probe, depth int) (types.ComplianceEvent, error) {
	if outer.DetailType != "" && outer.DetailType != detailTypeComplianceChange {
		return types.ComplianceEvent{}, fmt.Errorf("%w: unexpected detail-type %q", ErrMalformed, outer.DetailType)
	}

	event, err := decode(outer.Detail, depth+1)
	if err != nil {
		return types.ComplianceEvent{}, err
	}

	if event.Region == "" {
		event.Region = outer.Region
	}
	if event.AccountID == "" {
		event.AccountID = outer.Account
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = outer.Time
	}
	return event, nil
}

// buildEvent maps decoded Config notification fields onto a ComplianceEvent
func buildEvent(p probe) (types.ComplianceEvent, error) {
	event := types.ComplianceEvent{
		ResourceID:   p.ResourceID,
		ResourceType: p.ResourceType,
		RuleName:     p.ConfigRuleName,
		Region:       p.AWSRegion,
		AccountID:    p.AWSAccountID,
	}

	switch {
	case p.NewEvaluationResult != nil:
		event.Status = types.ComplianceStatus(p.NewEvaluationResult.ComplianceType)
		event.OccurredAt = p.NewEvaluationResult.ResultRecordedTime
	case p.ComplianceStatus != "":
		event.Status = types.ComplianceStatus(p.ComplianceStatus)
	default:
		return types.ComplianceEvent{}, fmt.Errorf("%w: no compliance status present", ErrMalformed)
	}

	if err := event.Validate(); err != nil {
		return types.ComplianceEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return event, nil
}
