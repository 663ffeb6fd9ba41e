// Command agorad runs the agent marketplace: REST API, dispatch loop, and
// the reputation, slashing and dispute engines.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"agora/internal/chain"
	"agora/internal/config"
	"agora/internal/dispatch"
	"agora/internal/judge"
	"agora/internal/logging"
	"agora/internal/market/adapters"
	"agora/internal/market/app"
	"agora/internal/market/domain"
	"agora/internal/observability"
	"agora/internal/payment"
	"agora/internal/server/rest"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "agorad",
		Short:        "Agent marketplace daemon",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// stores is the storage backend bundle, either in-memory or Postgres.
type stores struct {
	agents   domain.AgentRepository
	tasks    domain.TaskRepository
	feedback domain.FeedbackRepository
	disputes domain.DisputeRepository
	close    func()
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	observability.SetDefault(observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}))
	logger := logging.NewComponentLogger("agorad")
	logger.Info("starting agorad (env %s)", cfg.Environment)

	var metrics *observability.MetricsCollector
	if cfg.Metrics.Enabled {
		metrics, err = observability.NewMetricsCollector(observability.MetricsConfig{Enabled: true})
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		if err := metrics.StartPrometheusServer(cfg.Metrics.PrometheusPort); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	var tracer *observability.TracerProvider
	if cfg.Tracing.Enabled {
		tracer, err = observability.NewTracerProvider(observability.TracingConfig{
			Enabled:      true,
			OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
			SampleRate:   cfg.Tracing.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer tracer.Shutdown(context.Background())
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// External collaborators.
	var verifier domain.PaymentVerifier
	if cfg.Payment.FacilitatorURL != "" {
		verifier = payment.NewFacilitatorClient(cfg.Payment.FacilitatorURL, cfg.Payment.Timeout, logging.NewComponentLogger("payment"))
	}
	var mirror domain.ChainMirror
	if cfg.Chain.RPCURL != "" {
		mirror = chain.NewClient(cfg.Chain.RPCURL, cfg.Chain.Timeout, logging.NewComponentLogger("chain"))
	}

	penalty, err := uint256.FromDecimal(cfg.Slashing.PenaltyUnit)
	if err != nil {
		return fmt.Errorf("invalid slashing penalty %q: %w", cfg.Slashing.PenaltyUnit, err)
	}

	// Application services.
	taskOpts := []app.TaskServiceOption{app.WithTaskMetrics(metrics)}
	if verifier != nil {
		taskOpts = append(taskOpts, app.WithPaymentVerifier(verifier, cfg.Payment.StrictVerification))
	}
	taskSvc := app.NewTaskService(st.tasks, st.agents, logging.NewComponentLogger("tasks"), taskOpts...)
	agentSvc := app.NewAgentService(st.agents, mirror, logging.NewComponentLogger("agents"))

	repOpts := []app.ReputationServiceOption{app.WithReputationMetrics(metrics)}
	if cfg.JudgeConfigured() {
		repOpts = append(repOpts, app.WithJudge(judge.New(judge.Config{
			APIKey:  cfg.Judge.APIKey,
			BaseURL: cfg.Judge.BaseURL,
			Model:   cfg.Judge.Model,
			Timeout: cfg.Judge.Timeout,
		}, logging.NewComponentLogger("judge"))))
	}
	if mirror != nil {
		repOpts = append(repOpts, app.WithChainMirror(mirror))
	}
	repSvc := app.NewReputationService(st.agents, taskSvc, st.feedback, verifier, penalty, logging.NewComponentLogger("reputation"), repOpts...)

	disputeSvc := app.NewDisputeService(st.disputes, taskSvc, cfg.Dispute.QuorumVotes, metrics, logging.NewComponentLogger("disputes"))

	// Dispatch loop.
	signer := dispatch.NewSigner(cfg.Dispatch.PlatformSecret)
	webhooks := dispatch.NewWebhookClient(cfg.Dispatch.WebhookTimeout, signer)
	dispatcher := dispatch.NewDispatcher(st.tasks, st.agents, taskSvc, webhooks, dispatch.Config{
		Interval:      cfg.Dispatch.Interval,
		BatchSize:     cfg.Dispatch.BatchSize,
		MaxConcurrent: cfg.Dispatch.MaxConcurrent,
	}, metrics, tracer, logging.NewComponentLogger("dispatch"))
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// HTTP API.
	srv := rest.NewServer(rest.ServerConfig{
		Addr:  cfg.ListenAddr,
		Debug: cfg.Environment == "development",
	}, rest.Services{
		Agents:     agentSvc,
		Tasks:      taskSvc,
		Reputation: repSvc,
		Disputes:   disputeSvc,
	}, logging.NewComponentLogger("http"))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown: %v", err)
	}
	if metrics != nil {
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown: %v", err)
		}
	}
	logger.Info("agorad stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger logging.Logger) (*stores, error) {
	if cfg.Postgres.DSN == "" {
		logger.Info("no postgres dsn configured, using in-memory store")
		mem := adapters.NewMemoryStore()
		return &stores{
			agents:   mem.Agents(),
			tasks:    mem.Tasks(),
			feedback: mem.Feedback(),
			disputes: mem.Disputes(),
			close:    func() {},
		}, nil
	}

	pg, err := adapters.NewPostgresStore(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return &stores{
		agents:   pg.Agents(),
		tasks:    pg.Tasks(),
		feedback: pg.Feedback(),
		disputes: pg.Disputes(),
		close:    pg.Close,
	}, nil
}
