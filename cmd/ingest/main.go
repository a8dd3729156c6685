// Command ingest runs the bulk-ingestion pipeline: it loads a corpus, chunks
// and embeds it, and upserts the vectors, checkpointing each stage so an
// interrupted run can be resumed with the same run ID.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/services/impl"
	"github.com/lexrag-backend/services/ingestion"
)

const (
	exitOK          = 0
	exitFailed      = 1
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	runID := flag.String("run", "", "run ID (new or resumable); defaults to a timestamp")
	corpusDir := flag.String("corpus", "", "corpus directory (overrides INGESTION_CORPUS_DIR)")
	update := flag.Bool("update", false, "incremental mode: only fetch records newer than the last completed run")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return exitFailed
	}
	if *corpusDir != "" {
		cfg.Ingestion.CorpusDir = *corpusDir
	}
	if *runID == "" {
		*runID = fmt.Sprintf("run-%s", time.Now().UTC().Format("20060102-150405"))
	}

	embedder := impl.NewEmbeddingClient(&cfg.Embedding)
	vectorStore := impl.NewVectorStoreClient(&cfg.VectorStore)
	pipeline := ingestion.NewPipeline(
		ingestion.NewFileCrawler(cfg.Ingestion.CorpusDir),
		impl.NewParser(),
		impl.NewChunker(&cfg.Chunking),
		embedder,
		vectorStore,
		&cfg.Ingestion,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting ingestion run %s (corpus %s, update=%v)", *runID, cfg.Ingestion.CorpusDir, *update)
	if err := pipeline.Run(ctx, *runID, *update); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("Run %s interrupted; resume with -run %s", *runID, *runID)
			return exitInterrupted
		}
		log.Printf("Run %s failed: %v", *runID, err)
		return exitFailed
	}
	return exitOK
}
