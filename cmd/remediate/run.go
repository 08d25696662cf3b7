package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCodeAlone/remediation/alerts"
	"github.com/GoCodeAlone/remediation/config"
	"github.com/GoCodeAlone/remediation/enrichment"
	"github.com/GoCodeAlone/remediation/kube"
	"github.com/GoCodeAlone/remediation/module"
	"github.com/GoCodeAlone/remediation/observability/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

type runOptions struct {
	ConfigPath  string
	AlertPath   string
	Kubeconfig  string
	Context     string
	Concurrency int
	Metrics     bool
}

func runRun(args []string) error {
	var opts runOptions
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.StringVar(&opts.ConfigPath, "config", "", "Playbook configuration file (required)")
	fs.StringVar(&opts.AlertPath, "alert", "-", "Alertmanager webhook payload file, or - for stdin")
	fs.StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to a kubeconfig (overrides the config file)")
	fs.StringVar(&opts.Context, "context", "", "Kubeconfig context (overrides the config file)")
	fs.IntVar(&opts.Concurrency, "concurrency", 0, "Alerts handled in parallel (overrides the config file)")
	fs.BoolVar(&opts.Metrics, "metrics", false, "Print Prometheus metrics after the run")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: remediate run -config <playbooks.yaml> [options]\n\nRun matching playbooks for every alert in a payload and print the enrichments.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.ConfigPath == "" {
		fs.Usage()
		return fmt.Errorf("-config is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(*logLevel)}))

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	kcfg := kube.Config{
		Kubeconfig: cfg.Kubernetes.Kubeconfig,
		Context:    cfg.Kubernetes.Context,
		Shell:      cfg.Kubernetes.Shell,
	}
	if opts.Kubeconfig != "" {
		kcfg.Kubeconfig = opts.Kubeconfig
	}
	if opts.Context != "" {
		kcfg.Context = opts.Context
	}
	client, err := kube.NewClient(kcfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return execute(ctx, cfg, opts, module.KubePodResolver{Client: client}, os.Stdin, os.Stdout, logger)
}

// loadConfig reads and validates a playbook file against the built-in
// action types.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(module.NewDefaultStepRegistry().Types()); err != nil {
		return nil, fmt.Errorf("validation failed:\n%w", err)
	}
	return cfg, nil
}

// execute handles one alert payload end to end and writes every produced
// enrichment to out.
func execute(ctx context.Context, cfg *config.Config, opts runOptions, pods module.PodResolver, in io.Reader, out io.Writer, logger *slog.Logger) error {
	payload, err := readPayload(opts.AlertPath, in)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close enrichment store", "error", err)
		}
	}()

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Insecure:       cfg.Tracing.Insecure,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	metrics := module.NewMetricsCollector()
	playbooks, err := module.BuildPlaybooks(cfg, module.NewDefaultStepRegistry(), module.BuildOptions{
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tp.Tracer(),
	})
	if err != nil {
		return fmt.Errorf("failed to build playbooks: %w", err)
	}

	concurrency := cfg.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}
	runner := &module.Runner{
		Playbooks:   playbooks,
		Pods:        pods,
		Store:       store,
		Logger:      logger,
		Concurrency: concurrency,
	}

	logger.Info("Handling alert payload", "alerts", len(payload.Alerts), "playbooks", len(playbooks))
	produced, runErr := runner.HandlePayload(ctx, payload)

	for _, e := range produced {
		fmt.Fprintf(out, "### %s: %s\n\n%s\n\n", e.AlertName, e.Action, e.Markdown())
	}
	if opts.Metrics {
		if err := writeMetrics(out, metrics.Registry()); err != nil {
			return err
		}
	}
	return runErr
}

func readPayload(path string, stdin io.Reader) (*alerts.Payload, error) {
	if path == "" || path == "-" {
		return alerts.DecodePayload(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alert payload: %w", err)
	}
	defer f.Close()
	return alerts.DecodePayload(f)
}

func openStore(ctx context.Context, sc config.StoreConfig) (enrichment.Store, error) {
	switch sc.Type {
	case "", config.StoreMemory:
		return enrichment.NewMemoryStore(), nil
	case config.StoreRedis:
		ttl, err := sc.TTLDuration()
		if err != nil {
			return nil, err
		}
		s, err := enrichment.NewRedisStore(ctx, enrichment.RedisStoreConfig{
			Address:  sc.Address,
			Password: sc.Password,
			DB:       sc.DB,
			Prefix:   sc.Prefix,
			TTL:      ttl,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreSQLite:
		s, err := enrichment.NewSQLiteStore(ctx, sc.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", sc.Type)
	}
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
