package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/bio-nexus/backend/internal/config"
	"github.com/bio-nexus/backend/internal/queue"
	"github.com/bio-nexus/backend/internal/storage"
	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/graphstore"
	"github.com/bio-nexus/backend/pkg/index"
	"github.com/bio-nexus/backend/pkg/ingest"
	loaderio "github.com/bio-nexus/backend/pkg/loader/io"
	"github.com/bio-nexus/backend/pkg/loader/web"
	"github.com/bio-nexus/backend/pkg/logger"
	"github.com/bio-nexus/backend/pkg/logger/console"
	pgxstore "github.com/bio-nexus/backend/pkg/store/pgx"

	"github.com/spf13/cobra"
)

var (
	source     string
	inlineSync bool
	urls       []string
)

var rootCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Index local documents and web pages into the literature store",
	Long: `Walks the given files and directories, ingests every supported document
one at a time and prints a per-file report. Graph sync jobs are queued for
the worker unless --inline-sync applies them directly.`,
	SilenceUsage: true,
	RunE:         runIngest,
}

func init() {
	rootCmd.Flags().StringVar(&source, "source", "cli", "source label stored with every paper")
	rootCmd.Flags().BoolVar(&inlineSync, "inline-sync", false, "project papers into the graph before moving on")
	rootCmd.Flags().StringSliceVar(&urls, "url", nil, "web page to fetch and ingest (repeatable)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var errFilesFailed = errors.New("some documents failed")

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && len(urls) == 0 {
		return errors.New("no paths or --url given")
	}

	util.LoadEnv()
	cfg := config.Load()
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.Debug, JSON: cfg.LogJSON}))

	errs, warnings := cfg.Validate()
	for _, w := range warnings {
		logger.Warn("[Ingest][Config] " + w)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	indexer, cleanup, err := newIndexer(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	files := loaderio.NewFileSource(cfg.AllowedExtensions)
	paths, err := files.Walk(args)
	if err != nil {
		return err
	}

	var results []index.FileResult
	for _, p := range paths {
		f, err := files.Read(p)
		if err != nil {
			results = append(results, failed(p, err))
			continue
		}
		results = append(results, indexer.IndexAll(ctx, []ingest.Input{{FileName: f.Name, Content: f.Content, Source: source}})...)
	}

	fetcher := web.NewFetcher()
	for _, u := range urls {
		page, err := fetcher.Fetch(ctx, u)
		if err != nil {
			results = append(results, failed(u, err))
			continue
		}
		results = append(results, indexer.IndexAll(ctx, []ingest.Input{{FileName: page.FileName, Content: page.Content, Source: u}})...)
	}

	if printReport(cmd, results) > 0 {
		return errFilesFailed
	}
	return nil
}

func failed(name string, err error) index.FileResult {
	return index.FileResult{FileName: name, Err: err, Error: err.Error()}
}

func printReport(cmd *cobra.Command, results []index.FileResult) int {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tFILE\tPAPER\tCHUNKS\tDETAIL")
	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			fmt.Fprintf(w, "FAILED\t%s\t-\t-\t%s\n", r.FileName, r.Error)
			continue
		}
		detail := r.Result.Title
		if r.Result.EmbeddingFallback {
			detail += " (fallback embeddings)"
		}
		fmt.Fprintf(w, "OK\t%s\t%s\t%d\t%s\n", r.FileName, r.Result.PaperID, r.Result.Chunks, detail)
	}
	_ = w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d indexed, %d failed\n", len(results)-failures, failures)
	return failures
}

func newIndexer(ctx context.Context, cfg config.Config) (*index.Indexer, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pool, err := pgxstore.NewPool(ctx, cfg.DatabaseURL, 4)
	if err != nil {
		return nil, cleanup, fmt.Errorf("connect database: %w", err)
	}
	closers = append(closers, pool.Close)
	st := pgxstore.NewStore(pgxstore.NewStoreParams{Conn: pool})

	aiClient, err := cfg.NewAIClient()
	if err != nil {
		return nil, cleanup, fmt.Errorf("create AI client: %w", err)
	}

	params := index.NewIndexerParams{
		Store:    st,
		Ingestor: cfg.NewIngestor(),
		Chunker:  cfg.NewChunker(),
		Embedder: cfg.NewEmbedder(aiClient),
	}

	archive, err := storage.NewArchiveFromEnv(ctx)
	if err != nil {
		return nil, cleanup, fmt.Errorf("create S3 client: %w", err)
	}
	if archive != nil {
		params.Archiver = archive
	}

	graph, err := graphstore.NewFromEnv(ctx)
	if err != nil {
		return nil, cleanup, fmt.Errorf("connect Neo4j: %w", err)
	}
	if graph == nil {
		return index.NewIndexer(params), cleanup, nil
	}
	closers = append(closers, func() { _ = graph.Close(context.Background()) })
	params.Graph = graph

	if inlineSync {
		params.Notifier = index.InlineNotifier{Syncer: index.NewSyncer(index.NewSyncerParams{
			Store:     st,
			Graph:     graph,
			Extractor: cfg.NewExtractor(aiClient),
		})}
		return index.NewIndexer(params), cleanup, nil
	}

	conn := queue.Init()
	closers = append(closers, func() { _ = conn.Close() })
	ch, err := conn.Channel()
	if err != nil {
		return nil, cleanup, fmt.Errorf("open channel: %w", err)
	}
	closers = append(closers, func() { _ = ch.Close() })
	if err := queue.SetupQueues(ch, queue.GraphSyncQueue); err != nil {
		return nil, cleanup, err
	}
	params.Notifier = queue.NewPublisher(ch)
	return index.NewIndexer(params), cleanup, nil
}
