package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lattice-run/reactor"
	"github.com/lattice-run/reactor/internal/bridge"
	"github.com/lattice-run/reactor/internal/config"
	"github.com/lattice-run/reactor/internal/logging"
	"github.com/lattice-run/reactor/internal/metrics"
)

const (
	shutdownTimeout         = 5 * time.Second
	topicNodeSampleInterval = 5 * time.Second
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Launch the topic bridge and metrics servers",
	Long: `serve starts a reactor.TopicHandler[any] and exposes it over a
WebSocket bridge, alongside a Prometheus metrics endpoint, so an external
process can watch emissions flowing through a running graph.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	sched := reactor.NewScheduler()
	sched.SetLogger(log)
	sched.SetObserver(func(d reactor.QueueDepths) {
		metrics.ObserveQueueDepths(metrics.QueueDepths{Pure: d.Pure, Mutation: d.Mutation, Listener: d.Listener})
	})

	topic, _ := reactor.NewTopicWith[any](sched)
	bridgeSrv := bridge.NewServer(cfg, topic, log)
	defer bridgeSrv.Close()

	bridgeMux := http.NewServeMux()
	bridgeMux.Handle("/ws", bridgeSrv)
	bridgeHTTP := &http.Server{Addr: cfg.BridgeAddr, Handler: bridgeMux}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsHTTP := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		var err error
		if cfg.TLSCertPath != "" {
			log.Info("bridge server listening (tls)", logging.String("addr", cfg.BridgeAddr))
			err = bridgeHTTP.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			log.Info("bridge server listening", logging.String("addr", cfg.BridgeAddr))
			err = bridgeHTTP.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("bridge server: %w", err)
		}
	}()
	go func() {
		log.Info("metrics server listening", logging.String("addr", cfg.MetricsAddr))
		if err := metricsHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	go sampleTopicNodeCount(ctx, topic)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("server failed", logging.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = bridgeHTTP.Shutdown(shutdownCtx)
	_ = metricsHTTP.Shutdown(shutdownCtx)
	return nil
}

// sampleTopicNodeCount periodically mirrors the bridged topic's node count
// into the reactor_topic_nodes_total gauge until ctx is done.
func sampleTopicNodeCount(ctx context.Context, topic reactor.TopicHandler[any]) {
	ticker := time.NewTicker(topicNodeSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ObserveTopicNodeCount(topic.NodeCount())
		}
	}
}
