package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bio-nexus/backend/internal/config"
	"github.com/bio-nexus/backend/internal/queue"
	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/graphstore"
	"github.com/bio-nexus/backend/pkg/index"
	"github.com/bio-nexus/backend/pkg/leaselock"
	"github.com/bio-nexus/backend/pkg/logger"
	"github.com/bio-nexus/backend/pkg/logger/console"
	pgxstore "github.com/bio-nexus/backend/pkg/store/pgx"
)

const relayLockKey = "graph-sync-relay"

func main() {
	util.LoadEnv()
	cfg := config.Load()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Debug,
		JSON:  cfg.LogJSON,
	})
	logger.Init(consoleLogger)

	errs, warnings := cfg.Validate()
	for _, w := range warnings {
		logger.Warn("[Worker][Config] " + w)
	}
	if len(errs) > 0 {
		logger.Fatal("[Worker][Config] Invalid configuration", "errors", strings.Join(errs, "; "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init pgx client
	pool, err := pgxstore.NewPool(ctx, cfg.DatabaseURL, 0)
	if err != nil {
		logger.Fatal("[Worker][Init] Unable to connect to database", "err", err)
	}
	defer pool.Close()
	st := pgxstore.NewStore(pgxstore.NewStoreParams{Conn: pool})

	graph, err := graphstore.NewFromEnv(ctx)
	if err != nil {
		logger.Fatal("[Worker][Init] Unable to connect to Neo4j", "err", err)
	}
	if graph == nil {
		logger.Fatal("[Worker][Init] NEO4J_URI is required to apply graph sync jobs")
	}
	defer graph.Close(context.Background())

	aiClient, err := cfg.NewAIClient()
	if err != nil {
		logger.Fatal("[Worker][Init] Could not create AI client", "adapter", cfg.AIAdapter, "err", err)
	}

	syncer := index.NewSyncer(index.NewSyncerParams{
		Store:     st,
		Graph:     graph,
		Extractor: cfg.NewExtractor(aiClient),
	})

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("[Worker][Init] Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.GraphSyncQueue); err != nil {
		logger.Fatal("[Worker][Init] Failed to declare queues", "err", err)
	}

	// One unacked message at a time
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("[Worker][Init] Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()
	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("[Worker][Init] Failed to set QoS", "err", err)
	}

	deliveries, err := consumerCh.Consume(
		queue.GraphSyncQueue,
		queue.GraphSyncQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("[Worker][Init] Failed to start consuming", "queue", queue.GraphSyncQueue, "err", err)
	}

	consumer := queue.NewConsumer(ch, queue.GraphSyncQueue, withMetrics(aiClient, queue.GraphSyncHandler(syncer)), cfg.AgentStageTimeout*4)

	relay := &index.Relay{
		Store:    st,
		Notifier: queue.NewPublisher(ch),
	}
	locker := leaselock.New(leaselock.NewPostgres(pool))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		logger.Info("[Worker][Consume] Listening for messages", "queue", queue.GraphSyncQueue)
		consumer.Run(ctx, deliveries)
	}()
	go func() {
		defer wg.Done()
		err := locker.RunExclusive(ctx, relayLockKey, cfg.GraphSyncRelayInterval, leaselock.Options{}, func(ctx context.Context) error {
			_, err := relay.RunOnce(ctx)
			return err
		})
		if err != nil {
			logger.Error("[Worker][Relay] Relay stopped", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("[Worker][Shutdown] Shutdown signal received, waiting for running work")
	wg.Wait()
}

// withMetrics logs provider usage and processing time after every
// message.
func withMetrics(client ai.ReasoningClient, next queue.Handler) queue.Handler {
	return func(ctx context.Context, body []byte) error {
		start := time.Now()
		err := next(ctx, body)

		metrics := client.GetMetrics()
		logger.Info(
			"[Worker][Metrics] AI usage",
			"input_tokens", metrics.InputTokens,
			"output_tokens", metrics.OutputTokens,
			"total_tokens", metrics.TotalTokens,
			"ai_duration", formatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
			"duration", formatDuration(time.Since(start)),
		)
		client.ResetMetrics()
		return err
	}
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
