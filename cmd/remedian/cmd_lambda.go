package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/remedian/remedian/envelope"
	"github.com/remedian/remedian/types"
)

// lambdaCmd represents the lambda command
var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda handler",
	Long: `Run Remedian as the entrypoint of an AWS Lambda function.

The function is invoked by the compliance event rule, either directly
from EventBridge or through an SNS subscription. Every invocation
carries one compliance event; the handler remediates and returns the
result. A returned error makes the platform redeliver the event, which
is safe because the corrective call is idempotent.`,
	Example: `  remedian lambda --config /var/task/remedian.yaml`,
	RunE:    runLambda,
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}

func runLambda(cmd *cobra.Command, args []string) error {
	// Wired once per cold start, reused across invocations
	rt, err := buildRuntime(cmd.Context(), runtimeOptions{})
	if err != nil {
		return err
	}

	lambda.StartWithOptions(func(ctx context.Context, raw json.RawMessage) (*types.RemediationResult, error) {
		event, err := envelope.Decode(raw)
		if err != nil {
			// Malformed payloads are invocation failures, not silent drops
			return nil, err
		}
		return rt.handler.Handle(ctx, event)
	}, lambda.WithContext(cmd.Context()))

	rt.close(cmd.Context())
	return nil
}
