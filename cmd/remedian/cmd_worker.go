package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/remedian/remedian/internal/worker"
)

var (
	workerQueueURL    string
	workerMaxMessages int32
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Drain compliance events from an SQS queue",
	Long: `Run Remedian as a long-lived worker consuming an SQS queue
subscribed to the compliance notification topic.

Messages are long-polled, decoded and remediated one at a time. Handled
messages are deleted; messages whose remediation failed stay in flight
so the queue redelivers them. Malformed messages are dropped after
logging so they cannot poison the queue.`,
	Example: `  remedian worker --queue-url https://sqs.us-east-1.amazonaws.com/123456789012/compliance
  remedian worker --queue-url $QUEUE_URL --max-messages 5`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().StringVar(&workerQueueURL, "queue-url", "", "SQS queue URL to consume (required)")
	workerCmd.Flags().Int32Var(&workerMaxMessages, "max-messages", 10, "Messages per receive batch (1-10)")
	_ = workerCmd.MarkFlagRequired("queue-url")
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := buildRuntime(ctx, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	w := worker.New(rt.clients.SQS, workerQueueURL, rt.handler, worker.Options{
		MaxMessages: workerMaxMessages,
	})

	fmt.Printf("🚀 Worker consuming %s (Ctrl+C to stop)...\n", workerQueueURL)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker error: %w", err)
	}

	fmt.Println("\n👋 Worker stopped")
	return nil
}
