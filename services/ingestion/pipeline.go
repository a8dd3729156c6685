// Package ingestion bulk-builds the vector index from crawled corpora. Runs
// are checkpointed per stage on disk and can be interrupted and resumed at
// batch granularity.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/metrics"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
	"github.com/lexrag-backend/services/impl"
)

// Documents above this size chunk in small batches so a single statute book
// cannot stall a whole batch.
const largeDocumentChars = 200_000

const smallChunkBatch = 100

// Crawler produces normalized corpus records. Since limits results to records
// created at or after the given time; the zero time fetches everything.
type Crawler interface {
	Fetch(ctx context.Context, since time.Time) ([]models.CrawledDocument, error)
}

// Pipeline drives one ingestion run through its stages:
// init collection → fetch → normalize → chunk → embed+upsert → complete.
type Pipeline struct {
	crawler     Crawler
	parser      services.Parser
	chunker     services.Chunker
	embedder    services.Embedder
	vectorStore services.VectorStore
	tracker     *UpdateTracker
	config      *config.IngestionConfig
}

func NewPipeline(
	crawler Crawler,
	parser services.Parser,
	chunker services.Chunker,
	embedder services.Embedder,
	vectorStore services.VectorStore,
	cfg *config.IngestionConfig,
) *Pipeline {
	return &Pipeline{
		crawler:     crawler,
		parser:      parser,
		chunker:     chunker,
		embedder:    embedder,
		vectorStore: vectorStore,
		tracker:     NewUpdateTracker(cfg.CheckpointRoot),
		config:      cfg,
	}
}

// Run executes or resumes the run with the given ID. In update mode only
// records newer than the last completed run are fetched; if nothing new
// exists the run completes without touching the vector store.
func (p *Pipeline) Run(ctx context.Context, runID string, updateMode bool) error {
	store, err := NewCheckpointStore(p.config.CheckpointRoot, runID)
	if err != nil {
		return err
	}

	state, found, err := store.LoadState()
	if err != nil {
		return err
	}
	if !found {
		state = &models.IngestionState{
			RunID:     runID,
			StartTime: time.Now().UTC(),
		}
	} else {
		log.Printf("Resuming run %s from status %s (fetched=%d normalized=%d chunked=%d chunks=%d vectors=%d)",
			runID, state.Status, state.DocumentsFetched, state.DocumentsNormalized,
			state.DocumentsChunked, state.ChunksCreated, state.VectorsUploaded)
	}
	state.Status = models.IngestionRunning
	if err := store.SaveState(state); err != nil {
		return err
	}

	if err := p.runStages(ctx, store, state, updateMode); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			state.Status = models.IngestionInterrupted
		} else {
			state.Status = models.IngestionFailed
		}
		state.LastError = err.Error()
		state.ErrorCount++
		if saveErr := store.SaveState(state); saveErr != nil {
			log.Printf("Warning: failed to persist failure state for run %s: %v", runID, saveErr)
		}
		return err
	}

	state.Status = models.IngestionCompleted
	if err := store.SaveState(state); err != nil {
		return err
	}
	if err := p.tracker.MarkCompleted(state.StartTime); err != nil {
		log.Printf("Warning: failed to mark update timestamp for run %s: %v", runID, err)
	}
	log.Printf("Run %s completed: %d documents, %d chunks, %d vectors",
		runID, state.DocumentsFetched, state.ChunksCreated, state.VectorsUploaded)
	return nil
}

func (p *Pipeline) runStages(ctx context.Context, store *CheckpointStore, state *models.IngestionState, updateMode bool) error {
	if err := p.vectorStore.CreateCollection(ctx, p.embedder.Dim(), false); err != nil {
		return err
	}

	empty, err := p.fetchStage(ctx, store, state, updateMode)
	if err != nil {
		return err
	}
	if empty {
		log.Printf("Run %s: nothing new to ingest", state.RunID)
		return nil
	}

	if err := p.normalizeStage(ctx, store, state); err != nil {
		return err
	}
	if err := p.chunkStage(ctx, store, state); err != nil {
		return err
	}
	return p.embedStage(ctx, store, state)
}

// stageDone is the resume contract for the whole-artifact stages (fetch,
// normalize), whose output is rewritten atomically in one step: the stage is
// skipped iff its counter is non-zero or its artifact is non-empty. The chunk
// and embed stages checkpoint per batch and resume from their own offsets
// instead.
func stageDone(store *CheckpointStore, counter int, artifact string) bool {
	return counter > 0 || store.ArtifactNonEmpty(artifact)
}

func (p *Pipeline) fetchStage(ctx context.Context, store *CheckpointStore, state *models.IngestionState, updateMode bool) (empty bool, err error) {
	if stageDone(store, state.DocumentsFetched, documentsFile) {
		log.Printf("Run %s: fetch already done, skipping", state.RunID)
		return false, nil
	}

	var since time.Time
	if updateMode {
		last, ok, err := p.tracker.LastUpdate()
		if err != nil {
			return false, err
		}
		if ok {
			since = last
		}
	}

	docs, err := p.crawler.Fetch(ctx, since)
	if err != nil {
		return false, fmt.Errorf("fetch stage failed: %w", err)
	}
	if updateMode && len(docs) == 0 {
		return true, nil
	}

	if err := WriteJSONL(store, documentsFile, docs); err != nil {
		return false, err
	}
	state.DocumentsFetched = len(docs)
	return false, store.SaveState(state)
}

func (p *Pipeline) normalizeStage(ctx context.Context, store *CheckpointStore, state *models.IngestionState) error {
	if stageDone(store, state.DocumentsNormalized, normalizedFile) {
		log.Printf("Run %s: normalize already done, skipping", state.RunID)
		return nil
	}

	docs, err := ReadJSONL[models.CrawledDocument](store, documentsFile)
	if err != nil {
		return err
	}

	normalized := make([]models.NormalizedDocument, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		content := impl.NormalizeText(doc.Content)
		if content == "" {
			if err := store.RecordSkipped(models.SkippedDocument{
				DocID:     doc.ID,
				Stage:     "normalize",
				Reason:    "empty after normalization",
				Timestamp: time.Now().UTC(),
			}); err != nil {
				return err
			}
			continue
		}
		normalized = append(normalized, models.NormalizedDocument{
			ID:       doc.ID,
			Title:    doc.Title,
			Content:  content,
			Source:   doc.Source,
			Metadata: doc.Metadata,
		})
	}

	if err := WriteJSONL(store, normalizedFile, normalized); err != nil {
		return err
	}
	state.DocumentsNormalized = len(normalized)
	return store.SaveState(state)
}

// chunkStage parses and chunks documents in batches. Each batch runs under a
// batch-level timeout and each document under a document-level timeout; a
// timed-out document is skipped and recorded, a timed-out batch yields its
// remainder to the skip list. The checkpoint is saved after every batch, and
// a resumed run continues at the first document not yet covered by a
// committed batch; the stage is done only when every normalized document is
// accounted for.
func (p *Pipeline) chunkStage(ctx context.Context, store *CheckpointStore, state *models.IngestionState) error {
	docs, err := ReadJSONL[models.NormalizedDocument](store, normalizedFile)
	if err != nil {
		return err
	}
	if len(docs) > 0 && state.DocumentsChunked >= len(docs) {
		log.Printf("Run %s: chunk already done, skipping", state.RunID)
		return nil
	}
	if state.DocumentsChunked > 0 {
		log.Printf("Run %s: resuming chunk stage at document %d/%d",
			state.RunID, state.DocumentsChunked, len(docs))
	}

	batchSize := p.batchSizeFor(docs)
	for start := state.DocumentsChunked; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := p.chunkBatch(ctx, store, state, docs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// batchSizeFor shrinks the batch when the corpus contains large statute
// texts.
func (p *Pipeline) batchSizeFor(docs []models.NormalizedDocument) int {
	for _, doc := range docs {
		if len(doc.Content) > largeDocumentChars {
			if p.config.ChunkBatchSize > smallChunkBatch {
				return smallChunkBatch
			}
			break
		}
	}
	return p.config.ChunkBatchSize
}

func (p *Pipeline) chunkBatch(ctx context.Context, store *CheckpointStore, state *models.IngestionState, docs []models.NormalizedDocument) error {
	batchCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.BatchTimeoutSec)*time.Second)
	defer cancel()

	var chunks []models.Chunk
	for i, doc := range docs {
		if batchCtx.Err() != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Batch deadline hit: skip the remainder and move on.
			for _, rest := range docs[i:] {
				if err := store.RecordSkipped(models.SkippedDocument{
					DocID:     rest.ID,
					Stage:     "chunk",
					Reason:    "batch timeout",
					Timestamp: time.Now().UTC(),
				}); err != nil {
					return err
				}
			}
			break
		}

		docChunks, err := p.chunkDocument(batchCtx, doc)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := store.RecordSkipped(models.SkippedDocument{
				DocID:     doc.ID,
				Stage:     "chunk",
				Reason:    err.Error(),
				Timestamp: time.Now().UTC(),
			}); err != nil {
				return err
			}
			continue
		}
		chunks = append(chunks, docChunks...)
	}

	if err := AppendJSONL(store, chunksFile, chunks); err != nil {
		return err
	}
	state.ChunksCreated += len(chunks)
	state.DocumentsChunked += len(docs)
	return store.SaveState(state)
}

// chunkDocument runs parse+chunk under the per-document timeout. The work is
// CPU-bound, so the deadline is enforced by abandoning the worker goroutine.
func (p *Pipeline) chunkDocument(ctx context.Context, doc models.NormalizedDocument) ([]models.Chunk, error) {
	docCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.DocTimeoutSec)*time.Second)
	defer cancel()

	done := make(chan []models.Chunk, 1)
	go func() {
		sections := p.parser.Parse(doc.Content)
		done <- p.chunker.Chunk(sections, doc.ID)
	}()

	select {
	case chunks := <-done:
		return chunks, nil
	case <-docCtx.Done():
		return nil, fmt.Errorf("document timeout after %ds", p.config.DocTimeoutSec)
	}
}

// embedStage embeds and upserts chunks in batches, resuming past batches
// already counted in vectors_uploaded.
func (p *Pipeline) embedStage(ctx context.Context, store *CheckpointStore, state *models.IngestionState) error {
	chunks, err := ReadJSONL[models.Chunk](store, chunksFile)
	if err != nil {
		return err
	}
	if state.VectorsUploaded >= len(chunks) && len(chunks) > 0 {
		log.Printf("Run %s: embed+upsert already done, skipping", state.RunID)
		return nil
	}

	batchSize := p.config.EmbeddingBatchSize
	for start := state.VectorsUploaded; start < len(chunks); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed stage failed at offset %d: %w", start, err)
		}

		points := make([]models.VectorPoint, len(batch))
		for i, c := range batch {
			points[i] = models.VectorPoint{
				NumericID: models.NumericVectorID(c.ChunkID),
				Chunk:     c,
				Vector:    vectors[i],
			}
		}
		if err := p.vectorStore.Upsert(ctx, points); err != nil {
			return fmt.Errorf("upsert failed at offset %d: %w", start, err)
		}

		state.VectorsUploaded = end
		metrics.ChunksIngested.Add(float64(len(batch)))
		if err := store.SaveState(state); err != nil {
			return err
		}
		log.Printf("Run %s: uploaded %d/%d vectors", state.RunID, state.VectorsUploaded, len(chunks))
	}
	return nil
}

// FileCrawler loads corpus records from JSON files in a directory. Each file
// holds either one CrawledDocument or an array of them.
type FileCrawler struct {
	dir string
}

func NewFileCrawler(dir string) *FileCrawler {
	return &FileCrawler{dir: dir}
}

func (c *FileCrawler) Fetch(ctx context.Context, since time.Time) ([]models.CrawledDocument, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory %s: %w", c.dir, err)
	}

	var docs []models.CrawledDocument
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus file %s: %w", path, err)
		}

		var batch []models.CrawledDocument
		if err := json.Unmarshal(data, &batch); err != nil {
			var single models.CrawledDocument
			if err := json.Unmarshal(data, &single); err != nil {
				return nil, fmt.Errorf("corpus file %s is not a document or document array: %w", path, err)
			}
			batch = []models.CrawledDocument{single}
		}
		for _, doc := range batch {
			if !since.IsZero() && doc.CreatedDate.Before(since) {
				continue
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}
