package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remedian/remedian/audit"
	"github.com/remedian/remedian/config"
	"github.com/remedian/remedian/policy"
	"github.com/remedian/remedian/providers/aws"
	"github.com/remedian/remedian/remediator"
	"github.com/remedian/remedian/telemetry"
)

var (
	version    = "0.1.0"
	configPath string

	rootCmd = &cobra.Command{
		Use:   "remedian",
		Short: "Automated Compliance Remediation",
		Long: `Remedian - Automated Compliance Remediation

Remedian listens for AWS Config compliance change events and corrects
non-compliant resources automatically. A publicly exposed S3 bucket gets
its public access blocked, once, and a notification goes out about what
was done. Compliant resources are never touched.

Run it as a Lambda behind the compliance event rule, as a worker
draining an SQS queue, or as a daemon sweeping the account directly.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Remedian {{.Version}} - Automated Compliance Remediation
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "remedian.yaml", "Path to configuration file")
}

// runtime bundles everything a command needs to process events
type runtime struct {
	cfg      *config.Config
	clients  *aws.Clients
	handler  *remediator.Handler
	notifier remediator.Notifier
	provider *telemetry.Provider
	trail    *audit.Trail
}

// runtimeOptions adjust the wiring per command
type runtimeOptions struct {
	Prometheus bool // Attach a Prometheus reader for a /metrics endpoint
	DryRun     bool // Force dry-run regardless of config
}

// buildRuntime loads config and wires the handler with its AWS
// collaborators, policies, telemetry and audit trail
func buildRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		cfg.Remediation.DryRun = true
	}

	clients, err := aws.LoadClients(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}

	provider, err := telemetry.NewProvider(ctx, cfg.OTEL, telemetry.ProviderOptions{Prometheus: opts.Prometheus})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	registry := remediator.NewRegistry()
	if err := registry.Register(aws.NewS3PublicAccessRemedy(clients.S3)); err != nil {
		return nil, err
	}

	notifier := aws.NewSNSNotifier(clients.SNS, cfg.Notify.TopicARN)
	handler := remediator.NewHandler(registry, notifier, remediator.Options{
		DryRun:  cfg.Remediation.DryRun,
		Subject: cfg.Notify.Subject,
	}).WithMetrics(provider)

	if len(cfg.Policies) > 0 {
		engine := policy.NewEngine()
		if err := engine.LoadPolicyFiles(ctx, cfg.Policies...); err != nil {
			return nil, err
		}
		handler.WithPolicy(engine)
	}

	rt := &runtime{cfg: cfg, clients: clients, handler: handler, notifier: notifier, provider: provider}

	if cfg.Remediation.AuditDir != "" {
		trail, err := audit.Open(cfg.Remediation.AuditDir)
		if err != nil {
			return nil, err
		}
		handler.WithAudit(trail)
		rt.trail = trail
	}

	return rt, nil
}

// close releases the runtime's resources
func (rt *runtime) close(ctx context.Context) {
	if rt.trail != nil {
		_ = rt.trail.Close()
	}
	if rt.provider != nil {
		_ = rt.provider.Shutdown(ctx)
	}
}
