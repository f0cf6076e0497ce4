// Command courier-agent runs the agent as a publisher or a subscriber.
//
//	courier-agent <publisher|subscriber> <config.yaml>
//	courier-agent init <config.yaml>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	agent "github.com/gojek/courier-agent"
	"github.com/gojek/courier-agent/clock"
	"github.com/gojek/courier-agent/config"
	"github.com/gojek/courier-agent/consul"
	"github.com/gojek/courier-agent/metrics"
	agentslog "github.com/gojek/courier-agent/slog"
)

const usage = "usage: courier-agent <publisher|subscriber|init> <config.yaml>"

var errUsage = errors.New(usage)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		cancel()
		os.Exit(1)
	}
}

// runner is satisfied by both agent.Publisher and agent.Subscriber.
type runner interface {
	Run(ctx context.Context, clientID string) error
	ClientID() string
	Topic() string
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	if len(args) < 2 {
		return errUsage
	}

	mode, path := args[0], args[1]

	switch mode {
	case "init":
		if err := config.Save(path, config.Default()); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		fmt.Fprintf(stdout, "wrote default configuration to %s\n", path)

		return nil
	case "publisher", "subscriber":
	default:
		return fmt.Errorf("unknown mode %q\n%s", mode, usage)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, _ := config.ParseLogLevel(cfg.General.LogLevel)
	handler := slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: level}).
		WithAttrs([]slog.Attr{slog.String("run_id", uuid.NewString())})
	logger := agentslog.New(handler)

	agent.UsePahoLogger(logger)

	opts := []agent.Option{agent.WithLogger(logger)}

	if consul.IsConsulHost(cfg.Broker.Host) {
		r, err := newConsulResolver(cfg)
		if err != nil {
			return err
		}

		opts = append(opts, agent.WithResolver(r))
	}

	telemetry := &agent.Telemetry{}
	opts = append(opts, agent.WithTelemetry(telemetry))

	if cfg.Metrics.Listen != "" {
		m, stop, err := serveMetrics(cfg.Metrics.Listen, telemetry, stderr)
		if err != nil {
			return err
		}
		defer stop()

		opts = append(opts, agent.WithMetrics(m))
	}

	var r runner
	if mode == "publisher" {
		r = agent.NewPublisher(cfg, opts...)
	} else {
		r = agent.NewSubscriber(cfg, opts...)
	}

	clientID := r.ClientID()
	if err := printBanner(stdout, mode, path, cfg, clientID, r.Topic()); err != nil {
		return err
	}

	return r.Run(ctx, clientID)
}

func newConsulResolver(cfg *config.Config) (agent.Resolver, error) {
	c, err := consul.FromAgentConfig(cfg)
	if err != nil {
		return nil, err
	}

	return consul.NewResolver(c)
}

func serveMetrics(addr string, t *agent.Telemetry, stderr io.Writer) (metrics.Collector, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := metrics.NewPrometheus()
	if err := m.AddToRegistry(reg); err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/telemetry", t.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(stderr, "metrics server: %s\n", err)
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}

	return m, stop, nil
}

func printBanner(w io.Writer, mode, path string, cfg *config.Config, clientID, topic string) error {
	shown := *cfg
	if !cfg.General.EchoCredentials {
		shown = cfg.Redacted()
	}

	body, err := yaml.Marshal(shown)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	fmt.Fprintf(w, "mode: %s\n", mode)
	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "RUN at %s\n", clock.Timestamp(clock.New(cfg.General.LocalTime).Now()))
	fmt.Fprintf(w, "config:\n%s", body)
	fmt.Fprintf(w, "client id: %s\n", clientID)
	fmt.Fprintf(w, "topic: %s\n", topic)

	return nil
}
