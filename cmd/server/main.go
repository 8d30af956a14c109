package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bio-nexus/backend/internal/config"
	"github.com/bio-nexus/backend/internal/queue"
	"github.com/bio-nexus/backend/internal/server"
	mid "github.com/bio-nexus/backend/internal/server/middleware"
	"github.com/bio-nexus/backend/internal/storage"
	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/agent"
	"github.com/bio-nexus/backend/pkg/graphstore"
	"github.com/bio-nexus/backend/pkg/index"
	"github.com/bio-nexus/backend/pkg/logger"
	"github.com/bio-nexus/backend/pkg/logger/console"
	"github.com/bio-nexus/backend/pkg/query"
	"github.com/bio-nexus/backend/pkg/retrieval"
	pgxstore "github.com/bio-nexus/backend/pkg/store/pgx"
)

func main() {
	util.LoadEnv()
	cfg := config.Load()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Debug,
		JSON:  cfg.LogJSON,
	})
	logger.Init(consoleLogger)

	errs, warnings := cfg.Validate()
	for _, w := range warnings {
		logger.Warn("[Server][Config] " + w)
	}
	if len(errs) > 0 {
		logger.Fatal("[Server][Config] Invalid configuration", "errors", strings.Join(errs, "; "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init pgx client
	pool, err := pgxstore.NewPool(ctx, cfg.DatabaseURL, 0)
	if err != nil {
		logger.Fatal("[Server][Init] Unable to connect to database", "err", err)
	}
	defer pool.Close()
	st := pgxstore.NewStore(pgxstore.NewStoreParams{Conn: pool})

	aiClient, err := cfg.NewAIClient()
	if err != nil {
		logger.Fatal("[Server][Init] Could not create AI client", "adapter", cfg.AIAdapter, "err", err)
	}
	embedder := cfg.NewEmbedder(aiClient)

	graph, err := graphstore.NewFromEnv(ctx)
	if err != nil {
		logger.Fatal("[Server][Init] Unable to connect to Neo4j", "err", err)
	}
	defer graph.Close(context.Background())

	archive, err := storage.NewArchiveFromEnv(ctx)
	if err != nil {
		logger.Fatal("[Server][Init] Unable to create S3 client", "err", err)
	}

	indexParams := index.NewIndexerParams{
		Store:    st,
		Ingestor: cfg.NewIngestor(),
		Chunker:  cfg.NewChunker(),
		Embedder: embedder,
	}
	retrieverParams := retrieval.NewRetrieverParams{
		Search:        st,
		Embedder:      embedder,
		BranchTimeout: cfg.RetrievalBranchTimeout,
		Limit:         cfg.RetrievalLimit,
	}
	serviceParams := query.NewServiceParams{
		Store:        st,
		Reasoning:    aiClient,
		Threshold:    cfg.GroundingThreshold,
		StageTimeout: cfg.AgentStageTimeout,
	}
	app := &mid.App{Papers: st, MaxFileSize: cfg.MaxFileSize()}

	if archive != nil {
		indexParams.Archiver = archive
		app.Files = archive
	}

	if graph != nil {
		indexParams.Graph = graph
		retrieverParams.Graph = graph
		serviceParams.Graph = graph

		// Init rabbitmq
		conn := queue.Init()
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			logger.Fatal("[Server][Init] Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, queue.GraphSyncQueue); err != nil {
			logger.Fatal("[Server][Init] Failed to declare queues", "err", err)
		}
		indexParams.Notifier = queue.NewPublisher(ch)
	}

	app.Classifier = agent.NewClassifier(aiClient, cfg.AgentStageTimeout)
	retrieverParams.Classifier = app.Classifier

	app.Indexer = index.NewIndexer(indexParams)
	app.Retriever = retrieval.NewRetriever(retrieverParams)
	serviceParams.Retriever = app.Retriever
	app.Query = query.NewService(serviceParams)

	e := server.New(app)
	if err := server.Start(ctx, e, cfg.Port); err != nil {
		logger.Fatal("[Server][Start] Server stopped", "err", err)
	}
	logger.Info("[Server][Start] Shutdown complete")
}
